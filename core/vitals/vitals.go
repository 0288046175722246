// Package vitals stores the BP2 CheckMe blood pressure readings taken at the
// bedside and shows robot readings live on the apparatus group.
package vitals

import (
	"context"

	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
)

// Publisher announces a payload to a fan-out group.
type Publisher interface {
	Publish(ctx context.Context, group string, payload any) error
}

// Store is the persistence needed by the vitals service.
type Store interface {
	store.Vitals
	PatientByID(ctx context.Context, id int64) (model.Patient, error)
}

// Patch is a partial staff edit of a reading. Nil fields are kept.
type Patch struct {
	PatientID     *int64  `json:"patient"`
	Sys           *string `json:"sys"`
	Dia           *string `json:"dia"`
	Map           *string `json:"map"`
	PulseRateNote *string `json:"pulse_rate_note"`
}

func (p Patch) apply(r *model.Bp2Reading) {
	if p.PatientID != nil {
		r.PatientID = *p.PatientID
	}
	if p.Sys != nil {
		r.Sys = *p.Sys
	}
	if p.Dia != nil {
		r.Dia = *p.Dia
	}
	if p.Map != nil {
		r.Map = *p.Map
	}
	if p.PulseRateNote != nil {
		r.PulseRateNote = *p.PulseRateNote
	}
}

// Service manages BP2 readings.
type Service struct {
	store Store
	pub   Publisher
	log   logger.Logger
}

// New returns a Service. pub may be nil, in which case robot readings are
// only stored.
func New(s Store, pub Publisher, log logger.Logger) *Service {
	return &Service{store: s, pub: pub, log: logger.OrNop(log)}
}

// RecordFromRobot stores a reading sent by the robot and pushes its values to
// the apparatus group. A failed push is logged and does not fail the save.
func (s *Service) RecordFromRobot(ctx context.Context, patientID int64, v model.Bp2Values) (model.Bp2Reading, error) {
	r, err := s.create(ctx, patientID, v)
	if err != nil {
		return model.Bp2Reading{}, err
	}
	if s.pub != nil {
		if err := s.pub.Publish(ctx, fanout.GroupApparatus, r.Bp2Values); err != nil {
			s.log.Warnf("announce bp2 reading %d: %v", r.ID, err)
		}
	}
	return r, nil
}

// Upsert creates a reading when id is 0 and edits reading id otherwise. The
// returned flag reports a creation.
func (s *Service) Upsert(ctx context.Context, id int64, p Patch) (model.Bp2Reading, bool, error) {
	if id == 0 {
		var r model.Bp2Reading
		p.apply(&r)
		saved, err := s.create(ctx, r.PatientID, r.Bp2Values)
		return saved, true, err
	}
	r, err := s.store.Bp2ByID(ctx, id)
	if err != nil {
		return model.Bp2Reading{}, false, err
	}
	before := r.PatientID
	p.apply(&r)
	if err := r.Validate(); err != nil {
		return model.Bp2Reading{}, false, err
	}
	if r.PatientID != before {
		if _, err := s.store.PatientByID(ctx, r.PatientID); err != nil {
			return model.Bp2Reading{}, false, err
		}
	}
	if err := s.store.UpdateBp2(ctx, r); err != nil {
		return model.Bp2Reading{}, false, err
	}
	saved, err := s.store.Bp2ByID(ctx, id)
	return saved, false, err
}

func (s *Service) create(ctx context.Context, patientID int64, v model.Bp2Values) (model.Bp2Reading, error) {
	if patientID <= 0 {
		return model.Bp2Reading{}, model.Invalid("patient", "required")
	}
	if err := v.Validate(); err != nil {
		return model.Bp2Reading{}, err
	}
	if _, err := s.store.PatientByID(ctx, patientID); err != nil {
		return model.Bp2Reading{}, err
	}
	r, err := s.store.InsertBp2(ctx, model.Bp2Reading{PatientID: patientID, Bp2Values: v, Active: true})
	if err != nil {
		return model.Bp2Reading{}, err
	}
	s.log.Infof("bp2 reading %d for patient %d: %s/%s", r.ID, patientID, r.Sys, r.Dia)
	return r, nil
}

// Toggle flips the active flag of reading id.
func (s *Service) Toggle(ctx context.Context, id int64) (model.Bp2Reading, error) {
	r, err := s.store.Bp2ByID(ctx, id)
	if err != nil {
		return model.Bp2Reading{}, err
	}
	r.Active = !r.Active
	if err := s.store.UpdateBp2(ctx, r); err != nil {
		return model.Bp2Reading{}, err
	}
	return r, nil
}

// List returns a page of readings newest first with the total count.
func (s *Service) List(ctx context.Context, page model.Page) ([]model.Bp2Reading, int, error) {
	return s.store.ListBp2(ctx, page)
}
