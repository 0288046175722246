// Package assignment places patients into round batches. Every row of a
// batch whose patient lies in the same room shares one schedule order; the
// order of a new room is one past the highest order of the batch.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/medbot/rounds/core/dispatch"
	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
)

// ErrAlreadyInBatch is returned when a patient is checked against the batch
// it is already scheduled in.
var ErrAlreadyInBatch = fmt.Errorf("patient already exists in this batch slot: %w", model.ErrConflict)

// ConflictKind classifies an existing placement of a patient.
type ConflictKind string

const (
	ConflictNone       ConflictKind = "none"
	ConflictSameBatch  ConflictKind = "same_batch"
	ConflictOtherBatch ConflictKind = "other_batch"
)

// Conflict describes where a patient is already scheduled.
type Conflict struct {
	Kind               ConflictKind `json:"-"`
	PatientID          int64        `json:"patient_id"`
	CurrentBatchID     int64        `json:"current_batch"`
	CurrentBatchName   string       `json:"-"`
	RequestedBatchID   int64        `json:"requested_batch"`
	RequestedBatchName string       `json:"-"`
}

// Message is the confirmation prompt shown for an other-batch conflict.
func (c Conflict) Message() string {
	return fmt.Sprintf("Patient already exists in batch %s. Do you want to switch them to batch %s?",
		c.CurrentBatchName, c.RequestedBatchName)
}

// Service mutates the scheduled-slot table.
type Service struct {
	store store.Schedule
	log   logger.Logger
}

// New returns a Service backed by s.
func New(s store.Schedule, log logger.Logger) *Service {
	return &Service{store: s, log: logger.OrNop(log)}
}

// Assign schedules patientID in batchID, moving an existing placement. The
// patient must be active and hold a slot.
func (s *Service) Assign(ctx context.Context, patientID, batchID int64) (model.ScheduledSlot, error) {
	var out model.ScheduledSlot
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.PatientByID(ctx, patientID)
		if err != nil {
			return err
		}
		if !p.Active || p.SlotID == nil {
			return model.NotFound("active patient with slot", patientID)
		}
		slot, err := tx.SlotByID(ctx, *p.SlotID)
		if err != nil {
			return err
		}
		if _, err := tx.BatchByID(ctx, batchID); err != nil {
			return err
		}
		existing, found, err := scheduledFor(ctx, tx, patientID)
		if err != nil {
			return err
		}
		row := model.RowNumber(slot.RoomName)
		order, err := orderFor(ctx, tx, batchID, row, existing.ID)
		if err != nil {
			return err
		}
		next := model.ScheduledSlot{
			ID:            existing.ID,
			PatientID:     patientID,
			BatchID:       batchID,
			RowNumber:     row,
			ScheduleOrder: order,
			Active:        true,
			CreatedAt:     existing.CreatedAt,
		}
		if found {
			if err := tx.UpdateScheduled(ctx, next); err != nil {
				return err
			}
			out = next
			return nil
		}
		out, err = tx.InsertScheduled(ctx, next)
		return err
	})
	if err != nil {
		return model.ScheduledSlot{}, err
	}
	s.log.Infof("patient %d scheduled in batch %d (row %d, order %d)", patientID, batchID, out.RowNumber, out.ScheduleOrder)
	return out, nil
}

// RecomputeForPatient re-derives the row number and order of the patient's
// row after its slot changed. A patient without a row is left alone.
func (s *Service) RecomputeForPatient(ctx context.Context, patientID int64) error {
	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		return Recompute(ctx, tx, patientID)
	})
}

// Recompute is RecomputeForPatient within an open transaction, for callers
// that move a patient's slot as part of a larger change.
func Recompute(ctx context.Context, tx store.Tx, patientID int64) error {
	row, found, err := scheduledFor(ctx, tx, patientID)
	if err != nil || !found {
		return err
	}
	p, err := tx.PatientByID(ctx, patientID)
	if err != nil {
		return err
	}
	if p.SlotID == nil {
		return model.NotFound("slot of patient", patientID)
	}
	slot, err := tx.SlotByID(ctx, *p.SlotID)
	if err != nil {
		return err
	}
	row.RowNumber = model.RowNumber(slot.RoomName)
	if row.ScheduleOrder, err = orderFor(ctx, tx, row.BatchID, row.RowNumber, row.ID); err != nil {
		return err
	}
	return tx.UpdateScheduled(ctx, row)
}

// CheckConflict reports where patientID is scheduled relative to batchID.
// A same-batch placement also returns ErrAlreadyInBatch.
func (s *Service) CheckConflict(ctx context.Context, patientID, batchID int64) (Conflict, error) {
	c := Conflict{Kind: ConflictNone, PatientID: patientID, RequestedBatchID: batchID}
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		requested, err := tx.BatchByID(ctx, batchID)
		if err != nil {
			return err
		}
		c.RequestedBatchName = requested.Name
		row, found, err := scheduledFor(ctx, tx, patientID)
		if err != nil || !found {
			return err
		}
		c.CurrentBatchID = row.BatchID
		if row.BatchID == batchID {
			c.Kind = ConflictSameBatch
			c.CurrentBatchName = requested.Name
			return nil
		}
		current, err := tx.BatchByID(ctx, row.BatchID)
		if err != nil {
			return err
		}
		c.Kind = ConflictOtherBatch
		c.CurrentBatchName = current.Name
		return nil
	})
	if err != nil {
		return Conflict{}, err
	}
	if c.Kind == ConflictSameBatch {
		return c, ErrAlreadyInBatch
	}
	return c, nil
}

// Swap exchanges the patients of two scheduled rows. Row numbers and orders
// stay with the rows. Swapping twice restores the original state.
func (s *Service) Swap(ctx context.Context, a, b int64) error {
	if a == b {
		return model.Conflict("cannot swap a scheduled slot with itself")
	}
	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		ra, err := tx.ScheduledByID(ctx, a)
		if err != nil {
			return err
		}
		rb, err := tx.ScheduledByID(ctx, b)
		if err != nil {
			return err
		}
		// The patient column is unique; park row a on NULL first.
		if err := tx.SetScheduledPatient(ctx, a, nil); err != nil {
			return err
		}
		if err := tx.SetScheduledPatient(ctx, b, &ra.PatientID); err != nil {
			return err
		}
		return tx.SetScheduledPatient(ctx, a, &rb.PatientID)
	})
}

// SwapRoomOrder exchanges two schedule orders across every row of batchID.
func (s *Service) SwapRoomOrder(ctx context.Context, batchID int64, a, b int) error {
	if a <= 0 || b <= 0 {
		return model.Invalid("schedule_order", "must be positive")
	}
	if a == b {
		return model.Conflict("schedule orders are equal")
	}
	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		n, err := tx.SwapOrders(ctx, batchID, a, b)
		if err != nil {
			return err
		}
		if n == 0 {
			return model.NotFound(fmt.Sprintf("schedule orders %d/%d in batch", a, b), batchID)
		}
		return nil
	})
}

// Remove deletes a scheduled row and reports whether it existed.
func (s *Service) Remove(ctx context.Context, id int64) (bool, error) {
	return s.store.DeleteScheduled(ctx, id)
}

// List returns the rows of batchID, or of every batch when batchID is 0.
func (s *Service) List(ctx context.Context, batchID int64) ([]model.ScheduledSlotView, error) {
	return s.store.ListScheduled(ctx, batchID)
}

// ListGrouped returns the rows of batchID grouped by row number.
func (s *Service) ListGrouped(ctx context.Context, batchID int64) ([]dispatch.Group[model.ScheduledSlotView], error) {
	rows, err := s.store.ListScheduled(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return dispatch.GroupByRow(rows,
		func(v model.ScheduledSlotView) int { return v.RowNumber },
		func(v model.ScheduledSlotView) int64 { return v.ID }), nil
}

func scheduledFor(ctx context.Context, tx store.Tx, patientID int64) (model.ScheduledSlot, bool, error) {
	row, err := tx.ScheduledByPatient(ctx, patientID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ScheduledSlot{}, false, nil
	}
	if err != nil {
		return model.ScheduledSlot{}, false, err
	}
	return row, true, nil
}

// orderFor returns the order shared by rows of the same room, or one past the
// highest order in the batch. Row excludeID is ignored.
func orderFor(ctx context.Context, tx store.Tx, batchID int64, row int, excludeID int64) (int, error) {
	order, found, err := tx.OrderForRow(ctx, batchID, row, excludeID)
	if err != nil {
		return 0, err
	}
	if found {
		return order, nil
	}
	top, err := tx.MaxOrder(ctx, batchID, excludeID)
	if err != nil {
		return 0, err
	}
	return top + 1, nil
}
