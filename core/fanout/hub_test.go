package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbot/rounds/core/metrics"
	"github.com/medbot/rounds/core/model"
)

func next(t *testing.T, m *Member) []byte {
	t.Helper()
	select {
	case f, ok := <-m.Frames:
		require.True(t, ok, "frames closed")
		return f
	case <-time.After(time.Second):
		t.Fatalf("no frame for %s", m.Group)
	}
	return nil
}

func none(t *testing.T, m *Member) {
	t.Helper()
	select {
	case f := <-m.Frames:
		t.Fatalf("unexpected frame on %s: %s", m.Group, f)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestJoinAck(t *testing.T) {
	h := NewHub()
	defer func() { _ = h.Close() }()
	m, err := h.Join(GroupHelp)
	require.NoError(t, err)
	assert.Equal(t, Ack{Type: "connection_established", Message: "you are connected to help"}, m.Ack)
	assert.Equal(t, 1, h.Members(GroupHelp))

	_, err = h.Join("kitchen")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestPublishFraming(t *testing.T) {
	h := NewHub()
	defer func() { _ = h.Close() }()
	sched, _ := h.Join(GroupScheduler)
	emerg, _ := h.Join(GroupEmergency)
	ctx := context.Background()

	require.NoError(t, h.Publish(ctx, GroupScheduler, map[string]any{"batch_id": 4}))
	require.NoError(t, h.Publish(ctx, GroupEmergency, map[string]bool{"emergency": true}))

	assert.JSONEq(t, `{"batch_id":4}`, string(next(t, sched)))
	assert.JSONEq(t, `{"payload":{"emergency":true}}`, string(next(t, emerg)))
}

func TestGroupIsolation(t *testing.T) {
	h := NewHub()
	defer func() { _ = h.Close() }()
	help, _ := h.Join(GroupHelp)
	slot, _ := h.Join(GroupSlot)
	require.NoError(t, h.Publish(context.Background(), GroupSlot, "reached"))
	assert.JSONEq(t, `{"payload":"reached"}`, string(next(t, slot)))
	none(t, help)
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := NewHub()
	defer func() { _ = h.Close() }()
	m, _ := h.Join(GroupSlot)
	h.Leave(GroupSlot, m.ID)
	h.Leave(GroupSlot, m.ID)
	h.Leave(GroupSlot, "nobody")
	_, ok := <-m.Frames
	assert.False(t, ok)
	assert.Equal(t, 0, h.Members(GroupSlot))
}

func TestReceiveTransforms(t *testing.T) {
	h := NewHub()
	defer func() { _ = h.Close() }()
	ctx := context.Background()
	cases := []struct {
		group string
		in    string
		want  string
	}{
		{GroupHelp, `{"room":"room_3","bed":"bed_1"}`, `{"payload":"Immediate attention required at bed_1 in room_3"}`},
		{GroupHelp, `{"room":"room_3"}`, `{"payload":"Immediate attention required at None in room_3"}`},
		{GroupNotification, `{"icon":"warn","notification":"low battery","extra":1}`, `{"payload":{"icon":"warn","notification":"low battery"}}`},
		{GroupApparatus, `{"data":{"bp":"120/80"}}`, `{"payload":{"apparatus":{"bp":"120/80"}}}`},
		{GroupRobotDistance, `{"distance":0.42,"accuracy":"high"}`, `{"payload":{"distance":0.42,"accuracy":"high"}}`},
	}
	for _, c := range cases {
		m, err := h.Join(c.group)
		require.NoError(t, err)
		require.NoError(t, h.Receive(ctx, c.group, []byte(c.in)), c.group)
		assert.JSONEq(t, c.want, string(next(t, m)), c.group)
		h.Leave(c.group, m.ID)
	}
}

func TestReceiveRejects(t *testing.T) {
	h := NewHub()
	defer func() { _ = h.Close() }()
	ctx := context.Background()
	assert.True(t, errors.Is(h.Receive(ctx, GroupHelp, []byte(`{not json`)), model.ErrValidation))
	assert.True(t, errors.Is(h.Receive(ctx, GroupHelp, []byte(`[1,2]`)), model.ErrValidation))
	assert.True(t, errors.Is(h.Receive(ctx, GroupScheduler, []byte(`{}`)), model.ErrValidation))
	assert.True(t, errors.Is(h.Receive(ctx, "nope", []byte(`{}`)), model.ErrNotFound))
}

func TestSlowMemberDoesNotBlock(t *testing.T) {
	h := NewHub(WithBuffer(1))
	defer func() { _ = h.Close() }()
	slow, _ := h.Join(GroupJointHeat)
	fast, _ := h.Join(GroupJointHeat)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = h.Publish(context.Background(), GroupJointHeat, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow member")
	}
	assert.Len(t, slow.Frames, 1)
	assert.Len(t, fast.Frames, 1)
}

type loopback struct {
	mu      sync.Mutex
	deliver func(string, []byte)
	fail    bool
	sent    int
}

func (l *loopback) Publish(_ context.Context, group string, frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errors.New("broker down")
	}
	l.sent++
	if l.deliver != nil {
		l.deliver(group, frame)
	}
	return nil
}

func (l *loopback) Subscribe(_ context.Context, deliver func(string, []byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliver = deliver
	return nil
}

func (l *loopback) Close() error { return nil }

type fanoutSink struct {
	metrics.NopSink
	mu     sync.Mutex
	events []metrics.FanoutEvent
}

func (s *fanoutSink) RecordFanout(ev metrics.FanoutEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func TestBackboneDeliveryAndFallback(t *testing.T) {
	bb := &loopback{}
	sink := &fanoutSink{}
	h := NewHub(WithBackbone(bb), WithHubMetrics(sink))
	defer func() { _ = h.Close() }()
	require.NoError(t, h.Start(context.Background()))
	m, _ := h.Join(GroupEmergency)

	require.NoError(t, h.Publish(context.Background(), GroupEmergency, map[string]bool{"emergency": false}))
	assert.JSONEq(t, `{"payload":{"emergency":false}}`, string(next(t, m)))
	none(t, m)
	assert.Equal(t, 1, bb.sent)

	bb.mu.Lock()
	bb.fail = true
	bb.mu.Unlock()
	require.NoError(t, h.Publish(context.Background(), GroupEmergency, map[string]bool{"emergency": true}))
	assert.JSONEq(t, `{"payload":{"emergency":true}}`, string(next(t, m)))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	assert.Equal(t, 1, sink.events[0].Delivered)
}

func TestEncodeSchedulerIsBare(t *testing.T) {
	b, err := Encode(GroupScheduler, json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
	_, err = Encode("unknown", nil)
	assert.Error(t, err)
}

func TestLookupPath(t *testing.T) {
	g, ok := LookupPath("scheduler-data")
	require.True(t, ok)
	assert.Equal(t, GroupScheduler, g.Name)
	g, ok = LookupPath(GroupJointHeat)
	require.True(t, ok)
	assert.Equal(t, "joint-heat-value", g.Path)
	_, ok = LookupPath("kitchen")
	assert.False(t, ok)
	assert.Len(t, Groups(), 14)
}
