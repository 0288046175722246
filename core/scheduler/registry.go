package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
)

// BatchPatch carries the fields of a batch to create or change. Nil fields
// are left untouched on update.
type BatchPatch struct {
	Name        *string         `json:"batch_name"`
	TimeSlot    *model.TimeSlot `json:"time_slot"`
	Days        *model.Weekdays `json:"days"`
	TriggerTime *string         `json:"trigger_time"`
	Stopped     *bool           `json:"is_stopped"`
}

func (p BatchPatch) apply(b *model.Batch) error {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.TimeSlot != nil {
		b.TimeSlot = *p.TimeSlot
	}
	if p.Days != nil {
		b.Days = *p.Days
	}
	if p.TriggerTime != nil {
		ct, err := model.ParseClockTime(*p.TriggerTime)
		if err != nil {
			return err
		}
		b.TriggerTime = ct
	}
	if p.Stopped != nil {
		b.Stopped = *p.Stopped
	}
	return nil
}

// Registry manages batch definitions.
type Registry struct {
	store store.Batches
	log   logger.Logger
}

// NewRegistry returns a registry backed by s.
func NewRegistry(s store.Batches, log logger.Logger) *Registry {
	return &Registry{store: s, log: logger.OrNop(log)}
}

// SaveBatch creates a batch when id is 0, otherwise applies patch to the
// existing batch. A new batch needs a trigger time. The result is validated
// before it is stored.
func (r *Registry) SaveBatch(ctx context.Context, id int64, patch BatchPatch) (model.Batch, error) {
	var b model.Batch
	if id == 0 && patch.TriggerTime == nil {
		return model.Batch{}, model.Invalid("trigger_time", "required")
	}
	if id != 0 {
		var err error
		if b, err = r.store.BatchByID(ctx, id); err != nil {
			return model.Batch{}, err
		}
	}
	if err := patch.apply(&b); err != nil {
		return model.Batch{}, err
	}
	if err := b.Validate(); err != nil {
		return model.Batch{}, err
	}
	if id == 0 {
		created, err := r.store.InsertBatch(ctx, b)
		if err != nil {
			return model.Batch{}, fmt.Errorf("insert batch: %w", err)
		}
		r.log.Infof("batch %d (%s) created at %s", created.ID, created.Name, created.TriggerTime)
		return created, nil
	}
	if err := r.store.UpdateBatch(ctx, b); err != nil {
		return model.Batch{}, fmt.Errorf("update batch %d: %w", id, err)
	}
	return b, nil
}

// ListBatches returns batches newest first, optionally only running ones.
func (r *Registry) ListBatches(ctx context.Context, activeOnly bool) ([]model.Batch, error) {
	return r.store.ListBatches(ctx, activeOnly)
}

// Batch returns a single batch.
func (r *Registry) Batch(ctx context.Context, id int64) (model.Batch, error) {
	return r.store.BatchByID(ctx, id)
}

// MarkCompleted records that the robot finished the round of batch id.
func (r *Registry) MarkCompleted(ctx context.Context, id int64, now time.Time) (model.Batch, error) {
	b, err := r.store.BatchByID(ctx, id)
	if err != nil {
		return model.Batch{}, err
	}
	b.CompletedAt = &now
	b.Notified = true
	if err := r.store.UpdateBatch(ctx, b); err != nil {
		return model.Batch{}, fmt.Errorf("complete batch %d: %w", id, err)
	}
	return b, nil
}
