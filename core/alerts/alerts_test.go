package alerts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbot/rounds/core/alerts"
	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/internal/testutil"
)

type publishCall struct {
	group   string
	payload any
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, group string, payload any) error {
	f.calls = append(f.calls, publishCall{group, payload})
	return f.err
}

func TestSaveAlert(t *testing.T) {
	s := testutil.NewStore(t)
	pub := &fakePublisher{}
	svc := alerts.New(s, pub, nil)
	ctx := context.Background()

	a, err := svc.SaveAlert(ctx, model.AlertHistory{Room: " room_3 ", Bed: "A", Help: true})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, "room_3", a.Room)
	require.Len(t, pub.calls, 1)
	assert.Equal(t, fanout.GroupHelp, pub.calls[0].group)
	assert.Equal(t, "Immediate attention required at A in room_3", pub.calls[0].payload)

	_, err = svc.SaveAlert(ctx, model.AlertHistory{Room: "room_3", Bed: "A", NotMe: true})
	require.NoError(t, err)
	assert.Len(t, pub.calls, 1)

	pub.err = errors.New("broker down")
	_, err = svc.SaveAlert(ctx, model.AlertHistory{Room: "room_4", Bed: "B", Help: true})
	require.NoError(t, err)

	_, err = svc.SaveAlert(ctx, model.AlertHistory{Room: "room_3", Bed: "A", Help: true, TimedOut: true})
	assert.True(t, errors.Is(err, model.ErrValidation))
	_, err = svc.SaveAlert(ctx, model.AlertHistory{Room: "room_3", Help: true})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestRespondAndReason(t *testing.T) {
	s := testutil.NewStore(t)
	svc := alerts.New(s, nil, nil)
	ctx := context.Background()

	first, err := svc.SaveAlert(ctx, model.AlertHistory{Room: "room_1", Bed: "A", Help: true})
	require.NoError(t, err)
	second, err := svc.SaveAlert(ctx, model.AlertHistory{Room: "room_2", Bed: "A", Help: true})
	require.NoError(t, err)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	got, err := svc.Respond(ctx, first.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Responded)

	got, err = svc.Respond(ctx, second.ID, false)
	require.NoError(t, err)
	assert.True(t, got.TimedOut)
	assert.False(t, got.Responded)

	_, err = svc.UpdateReason(ctx, first.ID, "  ")
	assert.True(t, errors.Is(err, model.ErrValidation))
	got, err = svc.UpdateReason(ctx, first.ID, "patient asleep")
	require.NoError(t, err)
	assert.Equal(t, "patient asleep", got.Reason)
	assert.True(t, got.Responded)

	active, err = svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	all, err := svc.All(ctx, model.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.ID, all[0].ID)

	_, err = svc.Respond(ctx, 999, true)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestFailedSchedules(t *testing.T) {
	s := testutil.NewStore(t)
	svc := alerts.New(s, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordFailed(ctx, model.FailedSchedule{Bed: "A"})
	assert.True(t, errors.Is(err, model.ErrValidation))

	f, err := svc.RecordFailed(ctx, model.FailedSchedule{Room: "room_5", Bed: "B", Reason: "door closed"})
	require.NoError(t, err)

	responded := true
	f, err = svc.UpdateFailed(ctx, f.ID, alerts.FailedPatch{Responded: &responded})
	require.NoError(t, err)
	assert.True(t, f.Responded)
	assert.Equal(t, "door closed", f.Reason)

	list, err := svc.Failed(ctx, model.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Responded)

	_, err = svc.UpdateFailed(ctx, 42, alerts.FailedPatch{})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestVisitLogs(t *testing.T) {
	s := testutil.NewStore(t)
	svc := alerts.New(s, nil, nil)
	ctx := context.Background()
	ward := testutil.SeedWard(t, s, []string{"room_1"}, []string{"A"})
	batch := testutil.SeedBatch(t, s, "morning", 6, 0, model.Weekdays{Monday: true})

	_, err := svc.LogVisit(ctx, model.SchedulerLog{})
	assert.True(t, errors.Is(err, model.ErrValidation))

	roomID, bedID := ward.Rooms["room_1"].ID, ward.Beds["A"].ID
	l, err := svc.LogVisit(ctx, model.SchedulerLog{RoomID: &roomID, BedID: &bedID, BatchID: batch.ID, Successful: true})
	require.NoError(t, err)

	l, err = svc.SetAttended(ctx, l.ID, true)
	require.NoError(t, err)
	assert.True(t, l.Attended)

	logs, err := svc.Visits(ctx, batch.ID, model.Page{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Attended)
	assert.True(t, logs[0].Successful)

	logs, err = svc.Visits(ctx, batch.ID+1, model.Page{})
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = svc.SetAttended(ctx, 999, true)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
