package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbot/rounds/core/lock"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/scheduler"
)

func TestDriverRunsJobs(t *testing.T) {
	d := New(nil, nil)
	var runs atomic.Int32
	require.NoError(t, d.Add("tick", "@every 20ms", func(context.Context) { runs.Add(1) }))
	d.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 4*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDriverRejectsBadSpecsAndDuplicates(t *testing.T) {
	d := New(time.UTC, nil)
	assert.Error(t, d.Add("bad", "61 * * * *", func(context.Context) {}))
	require.NoError(t, d.Add("minute", "* * * * *", func(context.Context) {}))
	assert.Error(t, d.Add("minute", "* * * * *", func(context.Context) {}))
}

func TestDriverUsesLocation(t *testing.T) {
	loc := time.FixedZone("site", 2*3600)
	d := New(loc, nil)
	require.NoError(t, d.Add("sweep", "0 1 * * 1", func(context.Context) {}))
	d.Start(context.Background())
	defer func() { _ = d.Stop(context.Background()) }()

	next := d.Next("sweep").In(loc)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 1, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, d.Next("missing").IsZero())
}

func TestStopCancelsJobContext(t *testing.T) {
	d := New(nil, nil)
	started := make(chan struct{}, 1)
	canceled := make(chan struct{})
	require.NoError(t, d.Add("long", "@every 10ms", func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
			return
		}
		<-ctx.Done()
		close(canceled)
	}))
	d.Start(context.Background())
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("job never started")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	select {
	case <-canceled:
	default:
		t.Fatalf("job context not canceled")
	}
}

func TestDriverSkipsBusyJobByDefault(t *testing.T) {
	d := New(nil, nil)
	var runs atomic.Int32
	require.NoError(t, d.Add("slow", "@every 1s", func(ctx context.Context) {
		runs.Add(1)
		select {
		case <-time.After(2500 * time.Millisecond):
		case <-ctx.Done():
		}
	}))
	d.Start(context.Background())
	time.Sleep(3200 * time.Millisecond)
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int32(1), runs.Load())
}

// countingLocker records every lock attempt, one per cycle started.
type countingLocker struct {
	inner *lock.MemoryLocker
	adds  atomic.Int32
}

func (c *countingLocker) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.adds.Add(1)
	return c.inner.Add(ctx, key, value, ttl)
}

type downStore struct{ calls atomic.Int32 }

func (s *downStore) DueCandidates(context.Context, time.Weekday) ([]model.Batch, error) {
	s.calls.Add(1)
	return nil, errors.New("connection refused")
}

// minuteClock advances one minute per reading so every tick is its own cycle.
type minuteClock struct {
	base time.Time
	n    atomic.Int64
}

func (c *minuteClock) Now() time.Time {
	return c.base.Add(time.Duration(c.n.Add(1)) * time.Minute)
}

func TestRetryingTriggerDoesNotSwallowTicks(t *testing.T) {
	locker := &countingLocker{inner: lock.NewMemoryLocker()}
	trig := scheduler.NewTrigger(locker, &downStore{}, nil, nil,
		scheduler.WithClock(&minuteClock{base: time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)}),
		scheduler.WithRetry(scheduler.RetryPolicy{Retries: 3, Backoff: time.Second}))

	d := New(time.UTC, nil)
	require.NoError(t, d.Add("trigger", "@every 1s", trig.Tick, Overlapping()))
	d.Start(context.Background())
	defer func() { _ = d.Stop(context.Background()) }()

	// Each failing cycle retries for three seconds; later ticks still start
	// cycles of their own.
	assert.Eventually(t, func() bool { return locker.adds.Load() >= 3 }, 5*time.Second, 50*time.Millisecond)
}
