package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
	"github.com/medbot/rounds/internal/testutil"
)

func TestDirectoryRoundTrip(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	w := testutil.SeedWard(t, s, []string{"room_1", "room_2"}, []string{"bed_1", "bed_2"})

	slots, err := s.Slots(ctx, true)
	require.NoError(t, err)
	assert.Len(t, slots, 4)

	slot, err := s.SlotByNames(ctx, "room_2", "bed_1")
	require.NoError(t, err)
	assert.Equal(t, w.Slot("room_2", "bed_1").ID, slot.ID)
	assert.Equal(t, "room_2", slot.RoomName)
	assert.Equal(t, 10.0, slot.X)

	roomID, bedID := w.Rooms["room_1"].ID, w.Beds["bed_1"].ID
	_, err = s.InsertSlot(ctx, model.Slot{RoomID: &roomID, BedID: &bedID, Active: true})
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = s.InsertRoom(ctx, "room_1")
	assert.ErrorIs(t, err, model.ErrConflict)

	wp, err := s.WaypointByRoomName(ctx, "room_2")
	require.NoError(t, err)
	wp.Entry = model.Pose{X: 9, Y: 9, Yaw: 1}
	wp, err = s.SaveWaypoint(ctx, wp)
	require.NoError(t, err)
	assert.Equal(t, 9.0, wp.Entry.X)
	all, err := s.Waypoints(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.WaypointByRoomName(ctx, "room_9")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSlotPairUniqueWhileActive(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	w := testutil.SeedWard(t, s, []string{"room_1"}, []string{"bed_1"})
	old := w.Slot("room_1", "bed_1")
	roomID, bedID := w.Rooms["room_1"].ID, w.Beds["bed_1"].ID

	old.Active = false
	require.NoError(t, s.UpdateSlot(ctx, old))

	fresh, err := s.InsertSlot(ctx, model.Slot{RoomID: &roomID, BedID: &bedID, Active: true})
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)

	got, err := s.SlotByNames(ctx, "room_1", "bed_1")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)

	// reactivating the retired slot would give the pair two active slots
	old.Active = true
	assert.ErrorIs(t, s.UpdateSlot(ctx, old), model.ErrConflict)
}

func TestPatientsWithSlot(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	w := testutil.SeedWard(t, s, []string{"room_1"}, []string{"bed_1", "bed_2"})
	p := testutil.SeedPatient(t, s, "P-1", w.Slot("room_1", "bed_2"))
	_, err := s.InsertPatient(ctx, model.Patient{ExternalID: "P-2", Name: "No slot", Active: true})
	require.NoError(t, err)

	views, err := s.ActivePatientsWithSlot(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, p.ID, views[0].ID)
	assert.Equal(t, "bed_2", views[0].Slot.BedName)

	got, err := s.PatientBySlot(ctx, w.Slot("room_1", "bed_2").ID)
	require.NoError(t, err)
	assert.Equal(t, "P-1", got.ExternalID)

	// slot_id is unique across patients
	other := w.Slot("room_1", "bed_2").ID
	_, err = s.InsertPatient(ctx, model.Patient{ExternalID: "P-3", Name: "Dup", Active: true, SlotID: &other})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestBatchesDueCandidates(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	mon := testutil.SeedBatch(t, s, "morning", 6, 0, model.Weekdays{Monday: true})
	stopped := testutil.SeedBatch(t, s, "stopped", 6, 0, model.Weekdays{Monday: true})
	stopped.Stopped = true
	require.NoError(t, s.UpdateBatch(ctx, stopped))
	testutil.SeedBatch(t, s, "tuesday", 6, 0, model.Weekdays{Tuesday: true})

	due, err := s.DueCandidates(ctx, time.Monday)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, mon.ID, due[0].ID)
	assert.Equal(t, model.ClockTime{Hour: 6, Minute: 0}, due[0].TriggerTime)

	active, err := s.ListBatches(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	now := time.Now().UTC().Truncate(time.Millisecond)
	mon.CompletedAt = &now
	mon.Notified = true
	require.NoError(t, s.UpdateBatch(ctx, mon))
	got, err := s.BatchByID(ctx, mon.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, now.Equal(*got.CompletedAt))

	n, err := s.ResetCompletion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	got, err = s.BatchByID(ctx, mon.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.Notified)
}

func TestScheduleSwapOrdersSingleStatement(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	w := testutil.SeedWard(t, s, []string{"room_3", "room_5"}, []string{"bed_1", "bed_2"})
	b := testutil.SeedBatch(t, s, "morning", 6, 0, model.Weekdays{Monday: true})
	pa := testutil.SeedPatient(t, s, "A", w.Slot("room_3", "bed_1"))
	pb := testutil.SeedPatient(t, s, "B", w.Slot("room_3", "bed_2"))
	px := testutil.SeedPatient(t, s, "X", w.Slot("room_5", "bed_1"))

	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		for _, r := range []model.ScheduledSlot{
			{PatientID: pa.ID, BatchID: b.ID, RowNumber: 3, ScheduleOrder: 1, Active: true},
			{PatientID: pb.ID, BatchID: b.ID, RowNumber: 3, ScheduleOrder: 1, Active: true},
			{PatientID: px.ID, BatchID: b.ID, RowNumber: 5, ScheduleOrder: 2, Active: true},
		} {
			if _, err := tx.InsertScheduled(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))

	var touched int64
	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		touched, err = tx.SwapOrders(ctx, b.ID, 1, 2)
		return err
	}))
	assert.Equal(t, int64(3), touched)

	rows, err := s.ListScheduled(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		switch r.RowNumber {
		case 3:
			assert.Equal(t, 2, r.ScheduleOrder)
		case 5:
			assert.Equal(t, 1, r.ScheduleOrder)
		}
	}

	dispatch, err := s.DispatchRows(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, dispatch, 3)
	assert.Equal(t, "bed_1", dispatch[0].BedName)
	assert.Equal(t, "bed_2", dispatch[1].BedName)
	assert.Equal(t, "room_5", dispatch[2].RoomName)
}

func TestWithinTxRollsBack(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	w := testutil.SeedWard(t, s, []string{"room_1"}, []string{"bed_1"})
	b := testutil.SeedBatch(t, s, "morning", 6, 0, model.Weekdays{Monday: true})
	p := testutil.SeedPatient(t, s, "A", w.Slot("room_1", "bed_1"))

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.InsertScheduled(ctx, model.ScheduledSlot{PatientID: p.ID, BatchID: b.ID, RowNumber: 1, ScheduleOrder: 1, Active: true}); err != nil {
			return err
		}
		return model.Conflict("abort")
	})
	assert.ErrorIs(t, err, model.ErrConflict)
	rows, err := s.ListScheduled(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAlertsActiveListing(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	open, err := s.InsertAlert(ctx, model.AlertHistory{Room: "room_1", Bed: "bed_1", Help: true})
	require.NoError(t, err)
	done, err := s.InsertAlert(ctx, model.AlertHistory{Room: "room_1", Bed: "bed_2", Help: true, Reason: "water", Responded: true})
	require.NoError(t, err)

	active, err := s.ListAlerts(ctx, true, model.Page{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)

	all, err := s.ListAlerts(ctx, false, model.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, done.ID, all[0].ID)

	f, err := s.InsertFailed(ctx, model.FailedSchedule{Room: "room_1", Bed: "bed_1", Reason: "blocked"})
	require.NoError(t, err)
	f.Responded = true
	require.NoError(t, s.UpdateFailed(ctx, f))
	got, err := s.FailedByID(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, got.Responded)

	l, err := s.InsertSchedulerLog(ctx, model.SchedulerLog{BatchID: 1, Successful: true})
	require.NoError(t, err)
	logs, err := s.ListSchedulerLogs(ctx, 1, model.Page{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, l.ID, logs[0].ID)
	assert.ErrorIs(t, s.UpdateSchedulerLog(ctx, model.SchedulerLog{ID: 999}), model.ErrNotFound)
}

func TestBp2Readings(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	list, total, err := s.ListBp2(ctx, model.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)

	w := testutil.SeedWard(t, s, []string{"room_1"}, []string{"A"})
	p := testutil.SeedPatient(t, s, "P1", w.Slot("room_1", "A"))
	r, err := s.InsertBp2(ctx, model.Bp2Reading{PatientID: p.ID, Bp2Values: model.Bp2Values{Sys: "121", Map: "90"}, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "121", r.Sys)
	assert.Equal(t, "90", r.Map)
	assert.False(t, r.UpdatedAt.IsZero())

	r.Active = false
	require.NoError(t, s.UpdateBp2(ctx, r))
	got, err := s.Bp2ByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	r.ID = 77
	assert.ErrorIs(t, s.UpdateBp2(ctx, r), model.ErrNotFound)
	_, err = s.Bp2ByID(ctx, 77)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
