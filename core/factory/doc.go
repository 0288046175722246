// Package factory provides a small generic registry used to instantiate
// pluggable modules from configuration. A module is described by a type name
// and a map of raw settings; factories decode the settings with Decode and
// return the concrete implementation.
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	_ = reg.Register("influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct{ URL string `json:"url"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newInflux(c.URL), nil
//	})
package factory
