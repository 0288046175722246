// Package lock provides the add-if-absent primitive that keeps the minute
// trigger from firing twice for the same wall-clock minute.
package lock

import (
	"context"
	"sync"
	"time"
)

// TriggerTTL is how long a minute lock is held.
const TriggerTTL = 60 * time.Second

// TriggerValue is stored under a minute lock.
const TriggerValue = "locked"

// Locker stores key only when absent. Implementations must guarantee that
// among concurrent callers for the same key exactly one observes true.
type Locker interface {
	Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// TriggerKey returns the lock key for the wall-clock minute of t. Callers
// convert t to the site timezone first.
func TriggerKey(t time.Time) string {
	return "check_schedule_lock_" + t.Format("200601021504")
}

type entry struct {
	value   string
	expires time.Time
}

// MemoryLocker is a process-local Locker. It only serialises triggers inside
// one process; redundant workers need a shared store.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]entry), now: time.Now}
}

// Add implements Locker.
func (m *MemoryLocker) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.evict(now)
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = entry{value: value, expires: now.Add(ttl)}
	return true, nil
}

// Len returns the number of live keys.
func (m *MemoryLocker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(m.now())
	return len(m.entries)
}

func (m *MemoryLocker) evict(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
