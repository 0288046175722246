package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/infra/sqlstore"
	"github.com/medbot/rounds/internal/testutil"
)

func TestPostgresDueCandidates(t *testing.T) {
	testutil.RequireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	dsn, cleanup, err := testutil.StartPostgres(ctx)
	require.NoError(t, err)
	defer cleanup()

	s, err := sqlstore.Open(ctx, sqlstore.Config{Driver: "postgres", DSN: dsn, Migrate: true})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	room, err := s.InsertRoom(ctx, "room_4")
	require.NoError(t, err)
	_, err = s.InsertRoom(ctx, "room_4")
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = s.SaveWaypoint(ctx, model.RoomWaypoint{RoomID: room.ID, Active: true})
	require.NoError(t, err)

	b, err := s.InsertBatch(ctx, model.Batch{
		Name: "night", TimeSlot: model.TimeSlotNight,
		Days: model.Weekdays{Sunday: true}, TriggerTime: model.ClockTime{Hour: 22, Minute: 30},
	})
	require.NoError(t, err)
	due, err := s.DueCandidates(ctx, time.Sunday)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, b.ID, due[0].ID)
}
