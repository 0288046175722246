// Package telemetry ingests robot readings published over MQTT and feeds
// them to the telemetry state holders.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medbot/rounds/config"
	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/model"
	coretel "github.com/medbot/rounds/core/telemetry"
	infmqtt "github.com/medbot/rounds/infra/mqtt"
)

// Reading topic suffixes.
const (
	ReadingRobot       = "robot"
	ReadingArmEndpose  = "arm-endpose"
	ReadingSlotReached = "slot-reached"
	jointPrefix        = "joint-"
)

// Target receives decoded readings.
type Target interface {
	UpdateRobot(ctx context.Context, p coretel.RobotPatch) (coretel.Robot, error)
	UpdateArmEndpose(ctx context.Context, p coretel.EndposePatch) (coretel.ArmEndpose, error)
	UpdateJoints(ctx context.Context, kind coretel.JointKind, p coretel.JointsPatch) (coretel.Joints, error)
	SlotReached(ctx context.Context, room, bed string) (coretel.Arrival, error)
}

// Manager collects robot telemetry either via push or polling.
type Manager struct {
	cfg    config.TelemetryConfig
	cli    paho.Client
	target Target
	log    logger.Logger

	respCh chan telemetryMessage

	received    *prometheus.CounterVec
	rejected    prometheus.Counter
	pollReq     prometheus.Counter
	pollResp    prometheus.Counter
	pollTimeout prometheus.Counter
	lastCollect prometheus.Gauge
	latency     prometheus.Histogram
}

type telemetryMessage struct {
	Topic   string
	Payload []byte
	Arrived time.Time
}

func newManager(cfg config.TelemetryConfig, cli paho.Client, target Target, log logger.Logger) *Manager {
	cfg.SetDefaults()
	return &Manager{
		cfg:         cfg,
		cli:         cli,
		target:      target,
		log:         logger.OrNop(log),
		respCh:      make(chan telemetryMessage, 100),
		received:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "telemetry_readings_total", Help: "Robot readings applied, by reading"}, []string{"reading"}),
		rejected:    prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_readings_rejected_total", Help: "Robot readings that could not be applied"}),
		pollReq:     prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_requests_total", Help: "Number of telemetry poll requests"}),
		pollResp:    prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_responses_total", Help: "Number of telemetry poll responses"}),
		pollTimeout: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_timeout_total", Help: "Number of telemetry polls without response"}),
		lastCollect: prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetry_last_collect_timestamp_seconds", Help: "Unix timestamp of last telemetry collection"}),
		latency:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "telemetry_collect_latency_seconds", Help: "Latency of telemetry collection", Buckets: prometheus.DefBuckets}),
	}
}

// NewManager connects to MQTT and prepares telemetry collection. Metrics are
// registered on reg when it is not nil.
func NewManager(mqttCfg infmqtt.Config, cfg config.TelemetryConfig, target Target, reg prometheus.Registerer, log logger.Logger) (*Manager, error) {
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	m := newManager(cfg, cli, target, log)
	if reg != nil {
		for _, c := range []prometheus.Collector{m.received, m.rejected, m.pollReq, m.pollResp, m.pollTimeout, m.lastCollect, m.latency} {
			if err := reg.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					return nil, err
				}
			}
		}
	}
	return m, nil
}

// Start runs telemetry collection until context is done.
func (m *Manager) Start(ctx context.Context) {
	mode := strings.ToLower(m.cfg.Mode)
	if mode == "push" || mode == "hybrid" {
		topic := strings.TrimSuffix(m.cfg.StatePrefix, "/") + "/+"
		if token := m.cli.Subscribe(topic, 0, m.onPush); token.Wait() && token.Error() != nil {
			m.log.Errorf("subscribe state: %v", token.Error())
		}
	}
	if mode == "pull" || mode == "hybrid" {
		topic := strings.TrimSuffix(m.cfg.ResponsePrefix, "/") + "/+"
		if token := m.cli.Subscribe(topic, 0, m.onResponse); token.Wait() && token.Error() != nil {
			m.log.Errorf("subscribe response: %v", token.Error())
		}
		go m.pollLoop(ctx)
	}
	<-ctx.Done()
	if m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
}

func (m *Manager) onPush(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(m.cfg.Timeout())*time.Second)
	defer cancel()
	if err := m.process(ctx, msg.Payload(), msg.Topic()); err != nil {
		m.log.Errorf("push %s: %v", msg.Topic(), err)
	}
}

func (m *Manager) onResponse(_ paho.Client, msg paho.Message) {
	select {
	case m.respCh <- telemetryMessage{Topic: msg.Topic(), Payload: msg.Payload(), Arrived: time.Now()}:
	default:
		m.log.Warnf("poll response on %s dropped, queue full", msg.Topic())
	}
}

func reading(topic string) string {
	parts := strings.Split(topic, "/")
	return parts[len(parts)-1]
}

func (m *Manager) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.cfg.Interval()) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.doPoll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// doPoll asks the robot for a report and applies responses until the poll
// timeout. A poll without any response counts as a timeout.
func (m *Manager) doPoll(ctx context.Context) {
	start := time.Now()
	m.pollReq.Inc()
	token := m.cli.Publish(m.cfg.RequestTopic, 0, false, []byte("poll"))
	token.Wait()
	timeout := time.NewTimer(time.Duration(m.cfg.Timeout()) * time.Second)
	defer timeout.Stop()
	answered := false
	for {
		select {
		case resp := <-m.respCh:
			if err := m.process(ctx, resp.Payload, resp.Topic); err != nil {
				m.log.Errorf("poll %s: %v", resp.Topic, err)
				continue
			}
			answered = true
			m.pollResp.Inc()
			m.latency.Observe(resp.Arrived.Sub(start).Seconds())
			m.lastCollect.SetToCurrentTime()
		case <-timeout.C:
			if !answered {
				m.pollTimeout.Inc()
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

type slotReached struct {
	Room string `json:"room"`
	Bed  string `json:"bed"`
}

// process decodes payload according to the reading named by the last topic
// segment and applies it to the target.
func (m *Manager) process(ctx context.Context, payload []byte, topic string) error {
	name := reading(topic)
	err := m.apply(ctx, name, payload)
	if err != nil {
		m.rejected.Inc()
		return err
	}
	m.received.WithLabelValues(name).Inc()
	return nil
}

func (m *Manager) apply(ctx context.Context, name string, payload []byte) error {
	switch {
	case name == ReadingRobot:
		var p coretel.RobotPatch
		if err := json.Unmarshal(payload, &p); err != nil {
			return model.Invalid(name, err.Error())
		}
		_, err := m.target.UpdateRobot(ctx, p)
		return err
	case name == ReadingArmEndpose:
		var p coretel.EndposePatch
		if err := json.Unmarshal(payload, &p); err != nil {
			return model.Invalid(name, err.Error())
		}
		_, err := m.target.UpdateArmEndpose(ctx, p)
		return err
	case name == ReadingSlotReached:
		var p slotReached
		if err := json.Unmarshal(payload, &p); err != nil {
			return model.Invalid(name, err.Error())
		}
		_, err := m.target.SlotReached(ctx, p.Room, p.Bed)
		return err
	case strings.HasPrefix(name, jointPrefix):
		kind, err := coretel.ParseJointKind(strings.TrimPrefix(name, jointPrefix))
		if err != nil {
			return err
		}
		var p coretel.JointsPatch
		if err := json.Unmarshal(payload, &p); err != nil {
			return model.Invalid(name, err.Error())
		}
		_, err = m.target.UpdateJoints(ctx, kind, p)
		return err
	}
	return model.Invalid("topic", "unknown reading "+name)
}
