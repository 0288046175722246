// Package cron drives periodic jobs, such as the minute trigger and the
// weekly sweep, from cron specs evaluated in the site timezone.
package cron

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/medbot/rounds/core/logger"
)

// Driver runs named jobs on cron schedules. By default a job still running
// when its next tick fires skips that tick; see Overlapping.
type Driver struct {
	mu      sync.Mutex
	c       *cron.Cron
	loc     *time.Location
	log     logger.Logger
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// New returns a Driver evaluating specs in loc. A nil loc means UTC.
func New(loc *time.Location, log logger.Logger) *Driver {
	if loc == nil {
		loc = time.UTC
	}
	log = logger.OrNop(log)
	ctx, cancel := context.WithCancel(context.Background())
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Driver{
		c: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{log})),
		),
		loc:     loc,
		log:     log,
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

type jobOptions struct {
	overlap bool
}

// JobOption tunes a single job.
type JobOption func(*jobOptions)

// Overlapping lets a tick start while the previous run of the job is still
// going. The job must guard itself against double work.
func Overlapping() JobOption { return func(o *jobOptions) { o.overlap = true } }

// Add registers run under name. Names are unique.
func (d *Driver) Add(name, spec string, run func(ctx context.Context), opts ...JobOption) error {
	var o jobOptions
	for _, opt := range opts {
		opt(&o)
	}
	spec = strings.TrimSpace(spec)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[name]; ok {
		return fmt.Errorf("cron: job %q already registered", name)
	}
	var job cron.Job = cron.FuncJob(func() {
		started := time.Now()
		run(d.ctx)
		d.log.Debugw("cron job finished", map[string]any{"job": name, "duration_ms": time.Since(started).Milliseconds()})
	})
	if !o.overlap {
		job = cron.NewChain(cron.SkipIfStillRunning(cronLogger{d.log})).Then(job)
	}
	id, err := d.c.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("cron: job %q spec %q: %w", name, spec, err)
	}
	d.entries[name] = id
	d.log.Infof("job %s scheduled with %q in %s (overlap %t)", name, spec, d.loc, o.overlap)
	return nil
}

// Next returns the next activation of name, or the zero time when name is
// unknown or the driver is not started.
func (d *Driver) Next(name string) time.Time {
	d.mu.Lock()
	id, ok := d.entries[name]
	d.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return d.c.Entry(id).Next
}

// Start begins scheduling. Jobs receive a context canceled by Stop or when
// ctx is done.
func (d *Driver) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			d.cancel()
		case <-d.ctx.Done():
		}
	}()
	d.c.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to
// expire.
func (d *Driver) Stop(ctx context.Context) error {
	d.cancel()
	done := d.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct{ log logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, fields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorf("%s: %v %v", msg, err, fields(keysAndValues))
}

func fields(kv []any) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
