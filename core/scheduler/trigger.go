package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/medbot/rounds/core/dispatch"
	"github.com/medbot/rounds/core/dispatch/logging"
	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/core/lock"
	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/metrics"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/monitoring"
)

// ErrCycleAbandoned is returned when the lock or the due-batch query kept
// failing after every retry.
var ErrCycleAbandoned = errors.New("trigger cycle abandoned")

// BatchSource lists the batches that may fire on a weekday.
type BatchSource interface {
	DueCandidates(ctx context.Context, day time.Weekday) ([]model.Batch, error)
}

// PlanBuilder builds the dispatch plan of a batch.
type PlanBuilder interface {
	Build(ctx context.Context, batchID int64) (dispatch.Plan, error)
}

// Publisher broadcasts a payload to a fan-out group.
type Publisher interface {
	Publish(ctx context.Context, group string, payload any) error
}

// Announcement is the frame sent to the scheduler group.
type Announcement struct {
	Plan    dispatch.Plan `json:"scheduler"`
	BatchID int64         `json:"batch_id"`
}

// BatchFailure describes a batch that did not publish.
type BatchFailure struct {
	BatchID int64  `json:"batch_id"`
	Name    string `json:"batch_name"`
	Err     error  `json:"-"`
	Reason  string `json:"reason"`
}

// CycleReport summarises one RunCycle call.
type CycleReport struct {
	Minute     string         `json:"minute"`
	Locked     bool           `json:"locked"`
	Candidates int            `json:"candidates"`
	Fired      []int64        `json:"fired"`
	Failed     []BatchFailure `json:"failed"`
}

// Trigger runs minute cycles.
type Trigger struct {
	locker       lock.Locker
	batches      BatchSource
	builder      PlanBuilder
	pub          Publisher
	planLog      logging.LogStore
	sink         metrics.MetricsSink
	log          logger.Logger
	clock        Clock
	loc          *time.Location
	retry        RetryPolicy
	batchTimeout time.Duration
}

// Option customises a Trigger.
type Option func(*Trigger)

func WithPlanLog(s logging.LogStore) Option { return func(t *Trigger) { t.planLog = s } }

func WithMetrics(s metrics.MetricsSink) Option { return func(t *Trigger) { t.sink = s } }

func WithLogger(l logger.Logger) Option { return func(t *Trigger) { t.log = logger.OrNop(l) } }

func WithClock(c Clock) Option { return func(t *Trigger) { t.clock = c } }

func WithLocation(loc *time.Location) Option { return func(t *Trigger) { t.loc = loc } }

func WithRetry(p RetryPolicy) Option { return func(t *Trigger) { t.retry = p } }

func WithBatchTimeout(d time.Duration) Option { return func(t *Trigger) { t.batchTimeout = d } }

// NewTrigger wires a trigger. Defaults: UTC, three retries 60s apart and a
// 20s build timeout per batch.
func NewTrigger(locker lock.Locker, batches BatchSource, builder PlanBuilder, pub Publisher, opts ...Option) *Trigger {
	t := &Trigger{
		locker:       locker,
		batches:      batches,
		builder:      builder,
		pub:          pub,
		sink:         metrics.NopSink{},
		log:          logger.Nop{},
		clock:        SystemClock{},
		loc:          time.UTC,
		retry:        RetryPolicy{Retries: 3, Backoff: time.Minute},
		batchTimeout: 20 * time.Second,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Tick runs a cycle for the current minute of the trigger's clock.
func (t *Trigger) Tick(ctx context.Context) {
	rep, err := t.RunCycle(ctx, t.clock.Now())
	if err != nil {
		t.log.Errorf("cycle %s: %v", rep.Minute, err)
	}
}

// RunCycle fires every batch due at the minute of now in the site timezone.
// A minute already locked by another worker returns an empty report and no
// error. Batches fail independently.
func (t *Trigger) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	started := time.Now()
	now = now.In(t.loc)
	rep := CycleReport{Minute: now.Format("2006-01-02T15:04")}
	key := lock.TriggerKey(now)

	contended := false
	var candidates []model.Batch
	err := t.retry.Do(ctx, func(ctx context.Context) error {
		if !rep.Locked {
			ok, err := t.locker.Add(ctx, key, lock.TriggerValue, lock.TriggerTTL)
			if err != nil {
				return fmt.Errorf("acquire %s: %w", key, err)
			}
			if !ok {
				contended = true
				return nil
			}
			rep.Locked = true
		}
		var err error
		candidates, err = t.batches.DueCandidates(ctx, now.Weekday())
		if err != nil {
			return fmt.Errorf("due candidates: %w", err)
		}
		return nil
	})
	if err != nil {
		t.log.Errorf("fatal: abandoning cycle %s: %v", rep.Minute, err)
		monitoring.CaptureException(err, map[string]string{"component": "scheduler", "minute": rep.Minute})
		t.record(rep, metrics.CycleAbandoned, started)
		return rep, fmt.Errorf("%w: %w", ErrCycleAbandoned, err)
	}
	if contended {
		t.log.Debugf("minute %s already locked", rep.Minute)
		t.record(rep, metrics.CycleContended, started)
		return rep, nil
	}

	rep.Candidates = len(candidates)
	for _, b := range candidates {
		if !b.RunsOn(now.Weekday()) || !b.TriggerTime.Matches(now) {
			continue
		}
		if err := t.fire(ctx, b, now); err != nil {
			t.log.Errorf("batch %d (%s): %v", b.ID, b.Name, err)
			rep.Failed = append(rep.Failed, BatchFailure{BatchID: b.ID, Name: b.Name, Err: err, Reason: err.Error()})
			continue
		}
		rep.Fired = append(rep.Fired, b.ID)
	}
	result := metrics.CycleIdle
	if len(rep.Fired)+len(rep.Failed) > 0 {
		result = metrics.CycleFired
	}
	t.record(rep, result, started)
	return rep, nil
}

func (t *Trigger) fire(ctx context.Context, b model.Batch, now time.Time) (err error) {
	started := time.Now()
	var plan dispatch.Plan
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch panicked: %v", r)
			monitoring.CaptureException(err, map[string]string{"component": "scheduler", "batch_id": strconv.FormatInt(b.ID, 10)})
		}
		ev := metrics.BatchEvent{BatchID: b.ID, BatchName: b.Name, Rooms: len(plan), Beds: plan.BedCount(), Duration: time.Since(started), Time: now}
		if err != nil {
			ev.Err = err.Error()
		}
		if rec, ok := t.sink.(metrics.BatchRecorder); ok {
			_ = rec.RecordBatch(ev)
		}
	}()

	bctx, cancel := context.WithTimeout(ctx, t.batchTimeout)
	defer cancel()
	plan, err = t.build(bctx, b.ID)
	if err != nil {
		return err
	}
	if err := t.pub.Publish(ctx, fanout.GroupScheduler, Announcement{Plan: plan, BatchID: b.ID}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	t.log.Infof("published batch %d (%s): %d rooms, %d beds", b.ID, b.Name, len(plan), plan.BedCount())
	if t.planLog != nil {
		if err := t.planLog.Append(ctx, logging.NewPlanRecord(now, b.ID, b.Name, plan)); err != nil {
			t.log.Warnf("plan log append: %v", err)
		}
	}
	return nil
}

// build runs the builder in its own goroutine so a build ignoring ctx still
// releases the cycle when the batch timeout expires.
func (t *Trigger) build(ctx context.Context, batchID int64) (dispatch.Plan, error) {
	type result struct {
		plan dispatch.Plan
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("build panicked: %v", r)}
			}
		}()
		plan, err := t.builder.Build(ctx, batchID)
		done <- result{plan: plan, err: err}
	}()
	select {
	case r := <-done:
		return r.plan, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("build batch %d: %w", batchID, ctx.Err())
	}
}

func (t *Trigger) record(rep CycleReport, result string, started time.Time) {
	_ = t.sink.RecordCycle(metrics.CycleEvent{
		Minute:     rep.Minute,
		Result:     result,
		Candidates: rep.Candidates,
		Fired:      len(rep.Fired),
		Failed:     len(rep.Failed),
		Duration:   time.Since(started),
		Time:       started,
	})
}
