package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbot/rounds/config"
	coremon "github.com/medbot/rounds/core/monitoring"
)

type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *captureTransport) Configure(sentry.ClientOptions) {}

func (c *captureTransport) Flush(time.Duration) bool { return true }

func (c *captureTransport) FlushWithContext(context.Context) bool { return true }

func (c *captureTransport) Close() {}

func (c *captureTransport) SendEvent(e *sentry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestNewSentryMonitor_EmptyDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	_, ok := m.(coremon.NopMonitor)
	assert.True(t, ok)
}

func TestSentryMonitor_CaptureWithTags(t *testing.T) {
	tr := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "https://key@sentry.example.com/1", Transport: tr})
	require.NoError(t, err)
	m := &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}

	m.CaptureException(errors.New("cycle abandoned"), map[string]string{"minute": "202401010600"})
	m.CaptureException(nil, nil)
	m.ReportPanic("boom")

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.events, 2)
	assert.Equal(t, "202401010600", tr.events[0].Tags["minute"])
}
