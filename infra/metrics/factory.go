package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medbot/rounds/core/factory"
	coremetrics "github.com/medbot/rounds/core/metrics"
)

// Sink types accepted in metrics.sinks besides "nop".
const (
	SinkPrometheus = "prometheus"
	SinkInflux     = "influx"
)

// influxConf is the conf block of an influx sink.
type influxConf struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

func newInfluxFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c influxConf
	if err := factory.Decode(conf, &c); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if c.URL == "" || c.Bucket == "" {
		return nil, errors.New("url and bucket are required")
	}
	return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
}

func init() {
	_ = coremetrics.RegisterMetricsSink(SinkPrometheus, func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})
	_ = coremetrics.RegisterMetricsSink(SinkInflux, newInfluxFromConf)
}
