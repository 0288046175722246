package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
	"github.com/medbot/rounds/infra/sqlstore"
)

// NewStore opens a migrated SQLite store in a temporary directory.
func NewStore(t testing.TB) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(context.Background(), sqlstore.Config{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "rounds.db"),
		MaxOpenConns: 1,
		Migrate:      true,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Ward is a seeded set of rooms, beds, slots and waypoints.
type Ward struct {
	Rooms map[string]model.Room
	Beds  map[string]model.Bed
	// Slots is keyed by "room/bed".
	Slots map[string]model.Slot
}

// Slot returns the seeded slot for room and bed.
func (w Ward) Slot(room, bed string) model.Slot { return w.Slots[room+"/"+bed] }

// SeedWard creates the given rooms and beds, one slot per pair and a
// waypoint per room. Poses are derived from the room and bed indexes so
// assertions can predict them.
func SeedWard(t testing.TB, s *sqlstore.Store, rooms, beds []string) Ward {
	t.Helper()
	ctx := context.Background()
	w := Ward{Rooms: map[string]model.Room{}, Beds: map[string]model.Bed{}, Slots: map[string]model.Slot{}}
	for _, b := range beds {
		bed, err := s.InsertBed(ctx, b)
		if err != nil {
			t.Fatalf("insert bed: %v", err)
		}
		w.Beds[b] = bed
	}
	for i, r := range rooms {
		room, err := s.InsertRoom(ctx, r)
		if err != nil {
			t.Fatalf("insert room: %v", err)
		}
		w.Rooms[r] = room
		if _, err := s.SaveWaypoint(ctx, model.RoomWaypoint{
			RoomID: room.ID,
			Entry:  model.Pose{X: float64(i), Y: 1, Yaw: 0},
			Exit:   model.Pose{X: float64(i), Y: 2, Yaw: 3.14},
			Active: true,
		}); err != nil {
			t.Fatalf("save waypoint: %v", err)
		}
		for j, b := range beds {
			roomID, bedID := room.ID, w.Beds[b].ID
			slot, err := s.InsertSlot(ctx, model.Slot{
				RoomID: &roomID,
				BedID:  &bedID,
				Pose:   model.Pose{X: float64(i*10 + j), Y: float64(j), Yaw: 0.5},
				Active: true,
			})
			if err != nil {
				t.Fatalf("insert slot: %v", err)
			}
			w.Slots[r+"/"+b] = slot
		}
	}
	return w
}

// SeedPatient creates an active patient occupying slot.
func SeedPatient(t testing.TB, s *sqlstore.Store, ref string, slot model.Slot) model.Patient {
	t.Helper()
	id := slot.ID
	p, err := s.InsertPatient(context.Background(), model.Patient{
		ExternalID: ref, Name: "Patient " + ref, Gender: "F", Age: 70, Active: true, SlotID: &id,
	})
	if err != nil {
		t.Fatalf("insert patient: %v", err)
	}
	return p
}

// SeedBatch creates a batch running on the given days at hour:minute.
func SeedBatch(t testing.TB, s *sqlstore.Store, name string, hour, minute int, days model.Weekdays) model.Batch {
	t.Helper()
	b, err := s.InsertBatch(context.Background(), model.Batch{
		Name: name, TimeSlot: model.TimeSlotMorning, Days: days,
		TriggerTime: model.ClockTime{Hour: hour, Minute: minute},
	})
	if err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	return b
}

// SeedScheduled places patient in batch with an explicit schedule order.
func SeedScheduled(t testing.TB, s *sqlstore.Store, patient model.Patient, batch model.Batch, room string, order int) model.ScheduledSlot {
	t.Helper()
	var out model.ScheduledSlot
	err := s.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.InsertScheduled(context.Background(), model.ScheduledSlot{
			PatientID:     patient.ID,
			BatchID:       batch.ID,
			RowNumber:     model.RowNumber(room),
			ScheduleOrder: order,
			Active:        true,
		})
		return err
	})
	if err != nil {
		t.Fatalf("insert scheduled slot: %v", err)
	}
	return out
}
