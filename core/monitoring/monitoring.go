// Package monitoring reports fatal errors and recovered panics to an error
// tracker. The process-wide monitor defaults to a no-op and is replaced at
// startup with Init.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// ReportPanic records a value obtained from recover.
	ReportPanic(v any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) ReportPanic(any)                           {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation and returns the previous one.
func Init(m Monitor) Monitor {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	if m != nil {
		current = m
	}
	return prev
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	get().CaptureException(err, tags)
}

// Recover reports a panic of the calling goroutine and re-panics. It must be
// deferred directly.
func Recover() {
	if r := recover(); r != nil {
		m := get()
		m.ReportPanic(r)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	get().Flush(d)
}

// Captured is an exception or panic kept by a Memory monitor.
type Captured struct {
	Err   error
	Tags  map[string]string
	Panic any
}

// Memory keeps captured exceptions in memory. Tests install it with Init.
type Memory struct {
	mu     sync.Mutex
	events []Captured
}

func (m *Memory) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Captured{Err: err, Tags: tags})
}

func (m *Memory) ReportPanic(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Captured{Panic: v})
}

func (m *Memory) Flush(time.Duration) {}

// Events returns a copy of the captured exceptions.
func (m *Memory) Events() []Captured {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Captured(nil), m.events...)
}
