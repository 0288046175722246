// Package telemetry keeps the latest robot, arm and joint readings in
// process-wide holders and announces every change on its fan-out group.
package telemetry

import (
	"sync"
	"time"
)

// State holds the latest value of T. Writers are serialised and readers get
// a copy, so T must not contain maps, slices or pointers that are mutated.
type State[T any] struct {
	mu      sync.RWMutex
	value   T
	updated time.Time
}

// Get returns a copy of the value and the time of the last update. A state
// that was never written returns the zero value and a zero time.
func (s *State[T]) Get() (T, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.updated
}

// Update applies fn to the value under the write lock. When fn fails the
// value is left untouched.
func (s *State[T]) Update(now time.Time, fn func(*T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.value
	if err := fn(&next); err != nil {
		return s.value, err
	}
	s.value = next
	s.updated = now
	return next, nil
}
