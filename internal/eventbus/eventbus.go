package eventbus

import (
	"errors"
	"sync"
)

// ErrClosed is returned when joining a closed bus.
var ErrClosed = errors.New("eventbus: closed")

// DefaultBuffer is the per-member channel capacity.
const DefaultBuffer = 8

// GroupBus fans messages out to members of named groups. Delivery is
// non-blocking: a member whose buffer is full misses the message.
type GroupBus[T any] struct {
	mu     sync.RWMutex
	groups map[string]map[string]chan T
	buffer int
	closed bool
}

// NewGroupBus creates a bus whose member channels hold buffer messages.
func NewGroupBus[T any](buffer int) *GroupBus[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &GroupBus[T]{groups: make(map[string]map[string]chan T), buffer: buffer}
}

// Add registers member id in group and returns its channel. Adding an id
// twice replaces the previous channel, which is closed.
func (b *GroupBus[T]) Add(group, id string) (<-chan T, error) {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, ErrClosed
	}
	members, ok := b.groups[group]
	if !ok {
		members = make(map[string]chan T)
		b.groups[group] = members
	}
	if old, ok := members[id]; ok {
		close(old)
	}
	members[id] = ch
	return ch, nil
}

// Discard removes member id from group and closes its channel. Unknown
// members are ignored.
func (b *GroupBus[T]) Discard(group, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.groups[group]
	if !ok {
		return
	}
	ch, ok := members[id]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(b.groups, group)
	}
	if !b.closed {
		close(ch)
	}
}

// Send delivers msg to every current member of group and reports how many
// received it and how many were skipped because their buffer was full.
func (b *GroupBus[T]) Send(group string, msg T) (delivered, dropped int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, 0
	}
	for _, ch := range b.groups[group] {
		select {
		case ch <- msg:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// Size returns the number of members in group.
func (b *GroupBus[T]) Size(group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[group])
}

// Close closes all member channels and clears every group.
func (b *GroupBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, members := range b.groups {
		for _, ch := range members {
			close(ch)
		}
	}
	b.groups = nil
}
