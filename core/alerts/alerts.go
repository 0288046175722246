// Package alerts records bed alerts, visits the robot could not complete and
// the per-bed outcome of each round.
package alerts

import (
	"context"
	"strings"
	"time"

	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/store"
)

// Publisher announces a payload to a fan-out group.
type Publisher interface {
	Publish(ctx context.Context, group string, payload any) error
}

// Service wraps the alert store.
type Service struct {
	store store.Alerts
	pub   Publisher
	log   logger.Logger
}

// New returns a Service. pub may be nil, in which case help alerts are only
// stored.
func New(s store.Alerts, pub Publisher, log logger.Logger) *Service {
	return &Service{store: s, pub: pub, log: logger.OrNop(log)}
}

// SaveAlert stores a new alert. Help alerts are also announced on the help
// group; a failed announcement is logged and does not fail the save.
func (s *Service) SaveAlert(ctx context.Context, a model.AlertHistory) (model.AlertHistory, error) {
	a.Room, a.Bed = strings.TrimSpace(a.Room), strings.TrimSpace(a.Bed)
	if err := a.Validate(); err != nil {
		return model.AlertHistory{}, err
	}
	a.ID = 0
	saved, err := s.store.InsertAlert(ctx, a)
	if err != nil {
		return model.AlertHistory{}, err
	}
	s.log.Infof("%s alert %d at %s/%s", saved.Kind(), saved.ID, saved.Room, saved.Bed)
	if saved.Help && s.pub != nil {
		if err := s.pub.Publish(ctx, fanout.GroupHelp, fanout.HelpMessage(saved.Room, saved.Bed)); err != nil {
			s.log.Warnf("announce help alert %d: %v", saved.ID, err)
		}
	}
	return saved, nil
}

// Respond marks an alert as responded, or as timed out when responded is
// false.
func (s *Service) Respond(ctx context.Context, id int64, responded bool) (model.AlertHistory, error) {
	return s.editAlert(ctx, id, func(a *model.AlertHistory) error {
		if responded {
			a.Responded = true
		} else {
			a.TimedOut = true
		}
		return nil
	})
}

// UpdateReason records why an alert happened and marks it responded.
func (s *Service) UpdateReason(ctx context.Context, id int64, reason string) (model.AlertHistory, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.AlertHistory{}, model.Invalid("reason", "required")
	}
	return s.editAlert(ctx, id, func(a *model.AlertHistory) error {
		a.Reason = reason
		a.Responded = true
		return nil
	})
}

func (s *Service) editAlert(ctx context.Context, id int64, edit func(*model.AlertHistory) error) (model.AlertHistory, error) {
	a, err := s.store.AlertByID(ctx, id)
	if err != nil {
		return model.AlertHistory{}, err
	}
	if err := edit(&a); err != nil {
		return model.AlertHistory{}, err
	}
	if err := s.store.UpdateAlert(ctx, a); err != nil {
		return model.AlertHistory{}, err
	}
	return a, nil
}

// Active lists alerts without a reason or without a response, newest first.
func (s *Service) Active(ctx context.Context) ([]model.AlertHistory, error) {
	return s.store.ListAlerts(ctx, true, model.Page{Limit: 500})
}

// All lists alerts newest first.
func (s *Service) All(ctx context.Context, page model.Page) ([]model.AlertHistory, error) {
	return s.store.ListAlerts(ctx, false, page)
}

// RecordFailed stores a visit the robot could not complete.
func (s *Service) RecordFailed(ctx context.Context, f model.FailedSchedule) (model.FailedSchedule, error) {
	f.Room = strings.TrimSpace(f.Room)
	if f.Room == "" {
		return model.FailedSchedule{}, model.Invalid("room_name", "required")
	}
	f.ID = 0
	saved, err := s.store.InsertFailed(ctx, f)
	if err != nil {
		return model.FailedSchedule{}, err
	}
	s.log.Warnf("failed visit %d at %s/%s: %s", saved.ID, saved.Room, saved.Bed, saved.Reason)
	return saved, nil
}

// FailedPatch is a partial FailedSchedule update.
type FailedPatch struct {
	Reason    *string `json:"reason"`
	Responded *bool   `json:"responded"`
}

// UpdateFailed applies p to a failed schedule.
func (s *Service) UpdateFailed(ctx context.Context, id int64, p FailedPatch) (model.FailedSchedule, error) {
	f, err := s.store.FailedByID(ctx, id)
	if err != nil {
		return model.FailedSchedule{}, err
	}
	if p.Reason != nil {
		f.Reason = *p.Reason
	}
	if p.Responded != nil {
		f.Responded = *p.Responded
	}
	f.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateFailed(ctx, f); err != nil {
		return model.FailedSchedule{}, err
	}
	return f, nil
}

// Failed lists failed schedules newest first.
func (s *Service) Failed(ctx context.Context, page model.Page) ([]model.FailedSchedule, error) {
	return s.store.ListFailed(ctx, page)
}

// LogVisit records the outcome of one bed visit.
func (s *Service) LogVisit(ctx context.Context, l model.SchedulerLog) (model.SchedulerLog, error) {
	if l.BatchID <= 0 {
		return model.SchedulerLog{}, model.Invalid("batch_id", "required")
	}
	l.ID = 0
	return s.store.InsertSchedulerLog(ctx, l)
}

// SetAttended sets the attended flag of a visit log.
func (s *Service) SetAttended(ctx context.Context, id int64, attended bool) (model.SchedulerLog, error) {
	l, err := s.store.SchedulerLogByID(ctx, id)
	if err != nil {
		return model.SchedulerLog{}, err
	}
	l.Attended = attended
	if err := s.store.UpdateSchedulerLog(ctx, l); err != nil {
		return model.SchedulerLog{}, err
	}
	return l, nil
}

// Visits lists the visit logs of batchID, or of every batch when batchID
// is 0.
func (s *Service) Visits(ctx context.Context, batchID int64, page model.Page) ([]model.SchedulerLog, error) {
	return s.store.ListSchedulerLogs(ctx, batchID, page)
}
