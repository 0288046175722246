// Package directory manages rooms, beds, the slots the robot stops at, room
// waypoints and which slot each patient occupies.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/medbot/rounds/core/assignment"
	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
)

// Store is the persistence needed by the directory.
type Store interface {
	store.Directory
	store.Patients
	store.Schedule
}

// Service owns the ward layout and patient placement.
type Service struct {
	store Store
	log   logger.Logger
}

// New returns a Service backed by s.
func New(s Store, log logger.Logger) *Service {
	return &Service{store: s, log: logger.OrNop(log)}
}

// CreateRooms appends count rooms named room_<n> after the highest
// numbered existing room.
func (s *Service) CreateRooms(ctx context.Context, count int) ([]model.Room, error) {
	if count < 1 {
		return nil, model.Invalid("count", "must be at least 1")
	}
	rooms, err := s.store.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	last := 0
	for _, r := range rooms {
		last = max(last, model.RowNumber(r.Name))
	}
	out := make([]model.Room, 0, count)
	for i := 1; i <= count; i++ {
		r, err := s.store.InsertRoom(ctx, model.RoomName(last+i))
		if err != nil {
			return out, fmt.Errorf("create room %d of %d: %w", i, count, err)
		}
		out = append(out, r)
	}
	s.log.Infof("created %d rooms", len(out))
	return out, nil
}

// CreateBeds appends count beds named bed_<n> after the highest numbered
// existing bed.
func (s *Service) CreateBeds(ctx context.Context, count int) ([]model.Bed, error) {
	if count < 1 {
		return nil, model.Invalid("count", "must be at least 1")
	}
	beds, err := s.store.Beds(ctx)
	if err != nil {
		return nil, err
	}
	last := 0
	for _, b := range beds {
		last = max(last, model.RowNumber(b.Name))
	}
	out := make([]model.Bed, 0, count)
	for i := 1; i <= count; i++ {
		b, err := s.store.InsertBed(ctx, fmt.Sprintf("bed_%d", last+i))
		if err != nil {
			return out, fmt.Errorf("create bed %d of %d: %w", i, count, err)
		}
		out = append(out, b)
	}
	s.log.Infof("created %d beds", len(out))
	return out, nil
}

func (s *Service) Rooms(ctx context.Context) ([]model.Room, error) { return s.store.Rooms(ctx) }
func (s *Service) Beds(ctx context.Context) ([]model.Bed, error)   { return s.store.Beds(ctx) }

// Slots lists slots, optionally only the active ones.
func (s *Service) Slots(ctx context.Context, activeOnly bool) ([]model.Slot, error) {
	return s.store.Slots(ctx, activeOnly)
}

// CreateSlot registers the pose of a room/bed pair. A pair can only be
// registered once.
func (s *Service) CreateSlot(ctx context.Context, roomID, bedID int64, pose model.Pose) (model.Slot, error) {
	if roomID <= 0 {
		return model.Slot{}, model.Invalid("room_id", "required")
	}
	if bedID <= 0 {
		return model.Slot{}, model.Invalid("bed_id", "required")
	}
	slot, err := s.store.InsertSlot(ctx, model.Slot{RoomID: &roomID, BedID: &bedID, Pose: pose, Active: true})
	if err != nil {
		return model.Slot{}, err
	}
	s.log.Infof("slot %d created for %s/%s", slot.ID, slot.RoomName, slot.BedName)
	return slot, nil
}

// SetSlotPose moves a slot.
func (s *Service) SetSlotPose(ctx context.Context, id int64, pose model.Pose) (model.Slot, error) {
	slot, err := s.store.SlotByID(ctx, id)
	if err != nil {
		return model.Slot{}, err
	}
	slot.Pose = pose
	if err := s.store.UpdateSlot(ctx, slot); err != nil {
		return model.Slot{}, err
	}
	return slot, nil
}

// ToggleSlot flips the active flag of a slot.
func (s *Service) ToggleSlot(ctx context.Context, id int64) (model.Slot, error) {
	slot, err := s.store.SlotByID(ctx, id)
	if err != nil {
		return model.Slot{}, err
	}
	slot.Active = !slot.Active
	if err := s.store.UpdateSlot(ctx, slot); err != nil {
		return model.Slot{}, err
	}
	return slot, nil
}

// ResolveSlot returns the active slot at room/bed.
func (s *Service) ResolveSlot(ctx context.Context, room, bed string) (model.Slot, error) {
	room, bed = strings.TrimSpace(room), strings.TrimSpace(bed)
	if room == "" || bed == "" {
		return model.Slot{}, model.Invalid("room_name", "room and bed are required")
	}
	slot, err := s.store.SlotByNames(ctx, room, bed)
	if err != nil {
		return model.Slot{}, err
	}
	if !slot.Active {
		return model.Slot{}, model.NotFound("active slot", room+"/"+bed)
	}
	return slot, nil
}

func (s *Service) Waypoints(ctx context.Context) ([]model.RoomWaypoint, error) {
	return s.store.Waypoints(ctx)
}

// WaypointOf returns the active waypoint of the room called name.
func (s *Service) WaypointOf(ctx context.Context, name string) (model.RoomWaypoint, error) {
	w, err := s.store.WaypointByRoomName(ctx, strings.TrimSpace(name))
	if err != nil {
		return model.RoomWaypoint{}, err
	}
	if !w.Active {
		return model.RoomWaypoint{}, model.NotFound("active waypoint of room", name)
	}
	return w, nil
}

// UpsertWaypoint sets both poses of a room and activates its waypoint.
func (s *Service) UpsertWaypoint(ctx context.Context, roomID int64, entry, exit model.Pose) (model.RoomWaypoint, error) {
	if roomID <= 0 {
		return model.RoomWaypoint{}, model.Invalid("room_id", "required")
	}
	return s.store.SaveWaypoint(ctx, model.RoomWaypoint{RoomID: roomID, Entry: entry, Exit: exit, Active: true})
}

// SetEntry replaces the entry pose of an existing waypoint.
func (s *Service) SetEntry(ctx context.Context, roomID int64, pose model.Pose) (model.RoomWaypoint, error) {
	return s.editWaypoint(ctx, roomID, func(w *model.RoomWaypoint) { w.Entry = pose })
}

// SetExit replaces the exit pose of an existing waypoint.
func (s *Service) SetExit(ctx context.Context, roomID int64, pose model.Pose) (model.RoomWaypoint, error) {
	return s.editWaypoint(ctx, roomID, func(w *model.RoomWaypoint) { w.Exit = pose })
}

// ToggleWaypoint flips the active flag of a room's waypoint.
func (s *Service) ToggleWaypoint(ctx context.Context, roomID int64) (model.RoomWaypoint, error) {
	return s.editWaypoint(ctx, roomID, func(w *model.RoomWaypoint) { w.Active = !w.Active })
}

func (s *Service) editWaypoint(ctx context.Context, roomID int64, edit func(*model.RoomWaypoint)) (model.RoomWaypoint, error) {
	w, err := s.store.WaypointByRoomID(ctx, roomID)
	if err != nil {
		return model.RoomWaypoint{}, err
	}
	edit(&w)
	return s.store.SaveWaypoint(ctx, w)
}

// CreatePatient registers an active patient without a slot.
func (s *Service) CreatePatient(ctx context.Context, p model.Patient) (model.Patient, error) {
	if strings.TrimSpace(p.ExternalID) == "" {
		return model.Patient{}, model.Invalid("patient_id", "required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return model.Patient{}, model.Invalid("name", "required")
	}
	p.ID = 0
	p.Active = true
	p.SlotID = nil
	return s.store.InsertPatient(ctx, p)
}

// AssignSlot places a patient in slotID. A scheduled row of the patient stays
// in its batch with the row number and order of the new room.
func (s *Service) AssignSlot(ctx context.Context, patientID, slotID int64) (model.Patient, error) {
	var out model.Patient
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.PatientByID(ctx, patientID)
		if err != nil {
			return err
		}
		if !p.Active {
			return model.Conflict(fmt.Sprintf("patient %d is inactive", patientID))
		}
		slot, err := tx.SlotByID(ctx, slotID)
		if err != nil {
			return err
		}
		if !slot.Active {
			return model.Conflict(fmt.Sprintf("slot %d is inactive", slotID))
		}
		occupant, err := tx.PatientBySlot(ctx, slotID)
		switch {
		case err == nil && occupant.ID != patientID:
			return model.Conflict(fmt.Sprintf("slot %s/%s is assigned to patient %s", slot.RoomName, slot.BedName, occupant.ExternalID))
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return err
		}
		p.SlotID = &slotID
		if err := tx.UpdatePatient(ctx, p); err != nil {
			return err
		}
		out = p
		return assignment.Recompute(ctx, tx, patientID)
	})
	if err != nil {
		return model.Patient{}, err
	}
	s.log.Infof("patient %d assigned to slot %d", patientID, slotID)
	return out, nil
}

// TogglePatient flips the active flag of a patient, releasing its slot and
// scheduled row.
func (s *Service) TogglePatient(ctx context.Context, patientID int64) (model.Patient, error) {
	var out model.Patient
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.PatientByID(ctx, patientID)
		if err != nil {
			return err
		}
		p.Active = !p.Active
		p.SlotID = nil
		if _, err := tx.DeleteScheduledForPatient(ctx, patientID); err != nil {
			return err
		}
		if err := tx.UpdatePatient(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// Patient returns a patient by id.
func (s *Service) Patient(ctx context.Context, id int64) (model.Patient, error) {
	return s.store.PatientByID(ctx, id)
}

// ActiveWithSlot lists active patients holding a slot.
func (s *Service) ActiveWithSlot(ctx context.Context) ([]model.PatientView, error) {
	return s.store.ActivePatientsWithSlot(ctx)
}

// OccupantOf returns the active patient holding slotID.
func (s *Service) OccupantOf(ctx context.Context, slotID int64) (model.Patient, error) {
	var out model.Patient
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.PatientBySlot(ctx, slotID)
		return err
	})
	return out, err
}
