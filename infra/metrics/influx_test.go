package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/medbot/rounds/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfluxSink_RecordCycle(t *testing.T) {
	rec := &lineRecorder{}
	sink := NewInfluxSink(rec.server(t).URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.CycleEvent{Result: "fired", Candidates: 3, Fired: 2, Failed: 1, Duration: 1500 * time.Microsecond, Time: now}
	if err := sink.RecordCycle(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("trigger_cycle").
		AddTag("result", "fired").
		AddTag("component", "scheduler").
		AddField("candidates", 3).
		AddField("fired", 2).
		AddField("failed", 1).
		AddField("duration_ms", 1.5).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(rec.bodies) != 1 || rec.bodies[0] != expected {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordTelemetry(t *testing.T) {
	rec := &lineRecorder{}
	sink := NewInfluxSink(rec.server(t).URL+"/api/v2/write", "token", "org", "bucket")
	now := time.Now()
	smp := coremetrics.TelemetrySample{
		Measurement: "robot_state",
		Tags:        map[string]string{"robot": "Med Bot"},
		Fields:      map[string]any{"battery": 0.12345, "charging": true},
		Time:        now,
	}
	if err := sink.RecordTelemetry(smp); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPoint("robot_state", map[string]string{"robot": "Med Bot"},
		map[string]any{"battery": 0.123, "charging": true}, now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(rec.bodies) != 1 || rec.bodies[0] != expected {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
