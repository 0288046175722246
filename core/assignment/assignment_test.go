package assignment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbot/rounds/core/assignment"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
	"github.com/medbot/rounds/infra/sqlstore"
	"github.com/medbot/rounds/internal/testutil"
)

type fixture struct {
	store    *sqlstore.Store
	svc      *assignment.Service
	ward     testutil.Ward
	morning  model.Batch
	evening  model.Batch
	patients map[string]model.Patient
}

func setup(t *testing.T) fixture {
	t.Helper()
	s := testutil.NewStore(t)
	f := fixture{
		store:    s,
		svc:      assignment.New(s, nil),
		ward:     testutil.SeedWard(t, s, []string{"room_3", "room_5", "room_7"}, []string{"A", "B"}),
		patients: map[string]model.Patient{},
	}
	f.morning = testutil.SeedBatch(t, s, "morning", 6, 0, model.Weekdays{Monday: true})
	f.evening = testutil.SeedBatch(t, s, "evening", 18, 0, model.Weekdays{Monday: true})
	for _, rb := range [][2]string{{"room_3", "A"}, {"room_3", "B"}, {"room_5", "A"}, {"room_7", "A"}} {
		key := rb[0] + "/" + rb[1]
		f.patients[key] = testutil.SeedPatient(t, s, key, f.ward.Slot(rb[0], rb[1]))
	}
	return f
}

func (f fixture) assign(t *testing.T, key string, batch model.Batch) model.ScheduledSlot {
	t.Helper()
	row, err := f.svc.Assign(context.Background(), f.patients[key].ID, batch.ID)
	require.NoError(t, err)
	return row
}

// ordersShared checks that rows of one room carry one order and rooms differ.
func ordersShared(t *testing.T, rows []model.ScheduledSlotView) {
	t.Helper()
	byRow := map[int]int{}
	byOrder := map[int]int{}
	for _, r := range rows {
		if o, ok := byRow[r.RowNumber]; ok {
			assert.Equal(t, o, r.ScheduleOrder, "row %d", r.RowNumber)
		}
		byRow[r.RowNumber] = r.ScheduleOrder
		if rn, ok := byOrder[r.ScheduleOrder]; ok {
			assert.Equal(t, rn, r.RowNumber, "order %d", r.ScheduleOrder)
		}
		byOrder[r.ScheduleOrder] = r.RowNumber
	}
}

func TestAssign_OrderRules(t *testing.T) {
	f := setup(t)
	first := f.assign(t, "room_5/A", f.morning)
	assert.Equal(t, 5, first.RowNumber)
	assert.Equal(t, 1, first.ScheduleOrder)

	second := f.assign(t, "room_3/A", f.morning)
	assert.Equal(t, 3, second.RowNumber)
	assert.Equal(t, 2, second.ScheduleOrder)

	inherit := f.assign(t, "room_3/B", f.morning)
	assert.Equal(t, 2, inherit.ScheduleOrder)

	third := f.assign(t, "room_7/A", f.morning)
	assert.Equal(t, 3, third.ScheduleOrder)

	rows, err := f.svc.List(context.Background(), f.morning.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	ordersShared(t, rows)
}

func TestAssign_SingleRowPerPatient(t *testing.T) {
	f := setup(t)
	first := f.assign(t, "room_3/A", f.morning)
	moved := f.assign(t, "room_3/A", f.evening)
	assert.Equal(t, first.ID, moved.ID)
	assert.Equal(t, f.evening.ID, moved.BatchID)
	assert.Equal(t, 1, moved.ScheduleOrder)

	rows, err := f.svc.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, f.evening.ID, rows[0].BatchID)
}

func TestAssign_Rejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Assign(ctx, 999, f.morning.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = f.svc.Assign(ctx, f.patients["room_3/A"].ID, 999)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	p := f.patients["room_7/A"]
	p.Active = false
	require.NoError(t, f.store.WithinTx(ctx, func(tx store.Tx) error { return tx.UpdatePatient(ctx, p) }))
	_, err = f.svc.Assign(ctx, p.ID, f.morning.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestCheckConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pid := f.patients["room_3/A"].ID

	c, err := f.svc.CheckConflict(ctx, pid, f.morning.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.ConflictNone, c.Kind)

	f.assign(t, "room_3/A", f.morning)
	c, err = f.svc.CheckConflict(ctx, pid, f.morning.ID)
	assert.True(t, errors.Is(err, assignment.ErrAlreadyInBatch))
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Equal(t, assignment.ConflictSameBatch, c.Kind)

	c, err = f.svc.CheckConflict(ctx, pid, f.evening.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.ConflictOtherBatch, c.Kind)
	assert.Equal(t, f.morning.ID, c.CurrentBatchID)
	assert.Equal(t, f.evening.ID, c.RequestedBatchID)
	assert.Equal(t, "Patient already exists in batch morning. Do you want to switch them to batch evening?", c.Message())
}

func TestSwap_IsSelfInverse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.assign(t, "room_3/A", f.morning)
	b := f.assign(t, "room_5/A", f.morning)

	require.NoError(t, f.svc.Swap(ctx, a.ID, b.ID))
	rows, err := f.svc.List(ctx, f.morning.ID)
	require.NoError(t, err)
	got := map[int64]int64{}
	for _, r := range rows {
		got[r.ID] = r.PatientID
	}
	assert.Equal(t, b.PatientID, got[a.ID])
	assert.Equal(t, a.PatientID, got[b.ID])

	require.NoError(t, f.svc.Swap(ctx, a.ID, b.ID))
	rows, err = f.svc.List(ctx, f.morning.ID)
	require.NoError(t, err)
	for _, r := range rows {
		switch r.ID {
		case a.ID:
			assert.Equal(t, a.PatientID, r.PatientID)
			assert.Equal(t, a.ScheduleOrder, r.ScheduleOrder)
		case b.ID:
			assert.Equal(t, b.PatientID, r.PatientID)
		}
	}

	assert.True(t, errors.Is(f.svc.Swap(ctx, a.ID, a.ID), model.ErrConflict))
	assert.True(t, errors.Is(f.svc.Swap(ctx, a.ID, 999), model.ErrNotFound))
}

func TestSwapRoomOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.assign(t, "room_3/A", f.morning)
	f.assign(t, "room_3/B", f.morning)
	f.assign(t, "room_5/A", f.morning)

	require.NoError(t, f.svc.SwapRoomOrder(ctx, f.morning.ID, 1, 2))
	rows, err := f.svc.List(ctx, f.morning.ID)
	require.NoError(t, err)
	for _, r := range rows {
		if r.RowNumber == 3 {
			assert.Equal(t, 2, r.ScheduleOrder)
		} else {
			assert.Equal(t, 1, r.ScheduleOrder)
		}
	}
	ordersShared(t, rows)

	assert.True(t, errors.Is(f.svc.SwapRoomOrder(ctx, f.morning.ID, 2, 2), model.ErrConflict))
	assert.True(t, errors.Is(f.svc.SwapRoomOrder(ctx, f.morning.ID, 0, 2), model.ErrValidation))
	assert.True(t, errors.Is(f.svc.SwapRoomOrder(ctx, f.morning.ID, 8, 9), model.ErrNotFound))
}

func TestRemoveIsIdempotent(t *testing.T) {
	f := setup(t)
	row := f.assign(t, "room_3/A", f.morning)
	ok, err := f.svc.Remove(context.Background(), row.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.Remove(context.Background(), row.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListGrouped(t *testing.T) {
	f := setup(t)
	f.assign(t, "room_5/A", f.morning)
	f.assign(t, "room_3/A", f.morning)
	f.assign(t, "room_3/B", f.morning)
	f.assign(t, "room_7/A", f.evening)

	groups, err := f.svc.ListGrouped(context.Background(), f.morning.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 3, groups[0].RowNumber)
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, 5, groups[1].RowNumber)

	all, err := f.svc.ListGrouped(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecomputeForPatient(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.assign(t, "room_5/A", f.morning)
	row := f.assign(t, "room_3/A", f.morning)
	require.Equal(t, 2, row.ScheduleOrder)

	p := f.patients["room_3/A"]
	moved := f.ward.Slot("room_5", "B").ID
	p.SlotID = &moved
	require.NoError(t, f.store.WithinTx(ctx, func(tx store.Tx) error { return tx.UpdatePatient(ctx, p) }))
	require.NoError(t, f.svc.RecomputeForPatient(ctx, p.ID))

	rows, err := f.svc.List(ctx, f.morning.ID)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, 5, r.RowNumber)
		assert.Equal(t, 1, r.ScheduleOrder)
	}
	require.NoError(t, f.svc.RecomputeForPatient(ctx, f.patients["room_7/A"].ID))
}
