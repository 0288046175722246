package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/medbot/rounds/core/metrics"
)

// PromSink records trigger cycles, plan builds and fan-out activity in
// Prometheus metrics.
type PromSink struct {
	cycles    *prometheus.CounterVec
	batches   *prometheus.CounterVec
	build     prometheus.Histogram
	publishes *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	members   *prometheus.GaugeVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.cycles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rounds_trigger_cycles_total",
		Help: "Trigger cycles by result (fired, idle, contended, abandoned)",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if s.batches, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rounds_batches_total",
		Help: "Batches processed by the trigger, by outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.build, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rounds_plan_build_seconds",
		Help:    "Time spent building a dispatch plan",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.publishes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rounds_fanout_publishes_total",
		Help: "Frames published per group",
	}, []string{"group"})); err != nil {
		return nil, err
	}
	if s.dropped, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rounds_fanout_dropped_total",
		Help: "Frames dropped because a member was too slow",
	}, []string{"group"})); err != nil {
		return nil, err
	}
	if s.members, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rounds_fanout_members",
		Help: "Members currently joined per group",
	}, []string{"group"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCycle counts the cycle under its result label.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.Result).Inc()
	return nil
}

// RecordBatch counts the batch and observes the build latency.
func (s *PromSink) RecordBatch(ev coremetrics.BatchEvent) error {
	outcome := "published"
	if ev.Err != "" {
		outcome = "failed"
	}
	s.batches.WithLabelValues(outcome).Inc()
	s.build.Observe(ev.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordFanout(ev coremetrics.FanoutEvent) error {
	s.publishes.WithLabelValues(ev.Group).Inc()
	if ev.Dropped > 0 {
		s.dropped.WithLabelValues(ev.Group).Add(float64(ev.Dropped))
	}
	return nil
}

func (s *PromSink) RecordMembers(group string, n int) error {
	s.members.WithLabelValues(group).Set(float64(n))
	return nil
}
