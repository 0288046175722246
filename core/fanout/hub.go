// Package fanout broadcasts JSON frames to the members of named groups.
// Members are websocket connections in the API process; frames published in
// any process reach them through an optional Backbone.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/metrics"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/internal/eventbus"
)

// Ack is the first frame a member receives.
type Ack struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Member is a joined connection. Frames is closed when the member leaves or
// the hub closes.
type Member struct {
	ID     string
	Group  string
	Ack    Ack
	Frames <-chan []byte
}

type envelope struct {
	Payload any `json:"payload"`
}

// Hub tracks group membership and delivers frames. Delivery never blocks:
// a member whose buffer is full misses the frame.
type Hub struct {
	bus      *eventbus.GroupBus[[]byte]
	backbone Backbone
	sink     metrics.MetricsSink
	log      logger.Logger
}

// HubOption customises a Hub.
type HubOption func(*hubOptions)

type hubOptions struct {
	buffer   int
	backbone Backbone
	sink     metrics.MetricsSink
	log      logger.Logger
}

func WithBuffer(n int) HubOption { return func(o *hubOptions) { o.buffer = n } }

func WithBackbone(b Backbone) HubOption { return func(o *hubOptions) { o.backbone = b } }

func WithHubMetrics(s metrics.MetricsSink) HubOption { return func(o *hubOptions) { o.sink = s } }

func WithHubLogger(l logger.Logger) HubOption { return func(o *hubOptions) { o.log = l } }

// NewHub creates a hub. Without a backbone frames are delivered in-process.
func NewHub(opts ...HubOption) *Hub {
	o := hubOptions{sink: metrics.NopSink{}}
	for _, fn := range opts {
		fn(&o)
	}
	return &Hub{
		bus:      eventbus.NewGroupBus[[]byte](o.buffer),
		backbone: o.backbone,
		sink:     o.sink,
		log:      logger.OrNop(o.log),
	}
}

// Start subscribes to the backbone. It is a no-op without one.
func (h *Hub) Start(ctx context.Context) error {
	if h.backbone == nil {
		return nil
	}
	return h.backbone.Subscribe(ctx, h.deliver)
}

// Join adds a new member to group. No earlier frame is replayed.
func (h *Hub) Join(group string) (*Member, error) {
	g, ok := Lookup(group)
	if !ok {
		return nil, model.NotFound("group", group)
	}
	id := uuid.NewString()
	ch, err := h.bus.Add(g.Name, id)
	if err != nil {
		return nil, err
	}
	h.recordMembers(g.Name)
	h.log.Debugf("member %s joined %s", id, g.Name)
	return &Member{
		ID:     id,
		Group:  g.Name,
		Ack:    Ack{Type: "connection_established", Message: "you are connected to " + g.Label},
		Frames: ch,
	}, nil
}

// Leave removes a member. Unknown members are ignored.
func (h *Hub) Leave(group, memberID string) {
	h.bus.Discard(group, memberID)
	h.recordMembers(group)
}

// Members returns the number of members joined to group.
func (h *Hub) Members(group string) int { return h.bus.Size(group) }

// Encode builds the frame sent for payload on group.
func Encode(group string, payload any) ([]byte, error) {
	g, ok := Lookup(group)
	if !ok {
		return nil, model.NotFound("group", group)
	}
	if g.Bare {
		return json.Marshal(payload)
	}
	return json.Marshal(envelope{Payload: payload})
}

// Publish sends payload to every member of group. When the backbone fails
// the frame is still delivered to local members.
func (h *Hub) Publish(ctx context.Context, group string, payload any) error {
	frame, err := Encode(group, payload)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", group, err)
	}
	if h.backbone != nil {
		err := h.backbone.Publish(ctx, group, frame)
		if err == nil {
			return nil
		}
		h.log.Warnf("backbone publish on %s failed, delivering locally: %v", group, err)
	}
	h.deliver(group, frame)
	return nil
}

// Receive handles a message sent by a member of group and broadcasts the
// derived payload. Publish-only groups and malformed JSON are rejected.
func (h *Hub) Receive(ctx context.Context, group string, raw []byte) error {
	g, ok := Lookup(group)
	if !ok {
		return model.NotFound("group", group)
	}
	if g.Inbound == nil {
		return model.Invalid("group", group+" does not accept messages")
	}
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil || msg == nil {
		return model.Invalid("message", "malformed JSON object")
	}
	payload, err := g.Inbound(msg)
	if err != nil {
		return err
	}
	return h.Publish(ctx, g.Name, payload)
}

// Close disconnects every member.
func (h *Hub) Close() error {
	h.bus.Close()
	if h.backbone != nil {
		return h.backbone.Close()
	}
	return nil
}

func (h *Hub) deliver(group string, frame []byte) {
	delivered, dropped := h.bus.Send(group, frame)
	if dropped > 0 {
		h.log.Warnf("%s: dropped frame for %d slow members", group, dropped)
	}
	if rec, ok := h.sink.(metrics.FanoutRecorder); ok {
		_ = rec.RecordFanout(metrics.FanoutEvent{Group: group, Delivered: delivered, Dropped: dropped, Time: time.Now()})
	}
}

func (h *Hub) recordMembers(group string) {
	if rec, ok := h.sink.(metrics.MembersRecorder); ok {
		_ = rec.RecordMembers(group, h.bus.Size(group))
	}
}
