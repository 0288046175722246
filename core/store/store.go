// Package store declares the persistence ports used by the scheduling core.
// infra/sqlstore implements them over database/sql.
package store

import (
	"context"
	"time"

	"github.com/medbot/rounds/core/model"
)

// Directory stores rooms, beds, slots and room waypoints.
type Directory interface {
	Rooms(ctx context.Context) ([]model.Room, error)
	InsertRoom(ctx context.Context, name string) (model.Room, error)
	Beds(ctx context.Context) ([]model.Bed, error)
	InsertBed(ctx context.Context, name string) (model.Bed, error)

	Slots(ctx context.Context, activeOnly bool) ([]model.Slot, error)
	SlotByID(ctx context.Context, id int64) (model.Slot, error)
	SlotByNames(ctx context.Context, room, bed string) (model.Slot, error)
	// InsertSlot fails with model.ErrConflict when the room/bed pair exists.
	InsertSlot(ctx context.Context, s model.Slot) (model.Slot, error)
	UpdateSlot(ctx context.Context, s model.Slot) error

	Waypoints(ctx context.Context) ([]model.RoomWaypoint, error)
	WaypointByRoomID(ctx context.Context, roomID int64) (model.RoomWaypoint, error)
	WaypointByRoomName(ctx context.Context, name string) (model.RoomWaypoint, error)
	// SaveWaypoint inserts or replaces the waypoint of w.RoomID.
	SaveWaypoint(ctx context.Context, w model.RoomWaypoint) (model.RoomWaypoint, error)
}

// Patients stores patients and their slot.
type Patients interface {
	InsertPatient(ctx context.Context, p model.Patient) (model.Patient, error)
	PatientByID(ctx context.Context, id int64) (model.Patient, error)
	ActivePatientsWithSlot(ctx context.Context) ([]model.PatientView, error)
}

// Batches stores batch definitions.
type Batches interface {
	InsertBatch(ctx context.Context, b model.Batch) (model.Batch, error)
	UpdateBatch(ctx context.Context, b model.Batch) error
	BatchByID(ctx context.Context, id int64) (model.Batch, error)
	// ListBatches returns batches newest first.
	ListBatches(ctx context.Context, activeOnly bool) ([]model.Batch, error)
	// DueCandidates returns non-stopped batches flagged for day.
	DueCandidates(ctx context.Context, day time.Weekday) ([]model.Batch, error)
	// ResetCompletion clears completion time and notified flag on every batch.
	ResetCompletion(ctx context.Context) (int64, error)
}

// Schedule stores scheduled-slot rows.
type Schedule interface {
	// WithinTx runs fn in a single transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(Tx) error) error
	// ListScheduled returns the rows of batchID ordered by row number, or of
	// every batch when batchID is 0.
	ListScheduled(ctx context.Context, batchID int64) ([]model.ScheduledSlotView, error)
	// DispatchRows returns the active rows of batchID whose patient holds a
	// slot, ordered by (row_number, id).
	DispatchRows(ctx context.Context, batchID int64) ([]model.DispatchRow, error)
	DeleteScheduled(ctx context.Context, id int64) (bool, error)
}

// Tx is the transactional view used by multi-step mutations.
type Tx interface {
	PatientByID(ctx context.Context, id int64) (model.Patient, error)
	// PatientBySlot returns the active patient occupying slotID.
	PatientBySlot(ctx context.Context, slotID int64) (model.Patient, error)
	UpdatePatient(ctx context.Context, p model.Patient) error
	SlotByID(ctx context.Context, id int64) (model.Slot, error)
	BatchByID(ctx context.Context, id int64) (model.Batch, error)

	ScheduledByID(ctx context.Context, id int64) (model.ScheduledSlot, error)
	ScheduledByPatient(ctx context.Context, patientID int64) (model.ScheduledSlot, error)
	// OrderForRow returns the schedule order used by rows of batchID with the
	// given row number, ignoring row excludeID.
	OrderForRow(ctx context.Context, batchID int64, row int, excludeID int64) (order int, found bool, err error)
	// MaxOrder returns the largest schedule order in batchID ignoring
	// excludeID, or 0 when the batch has no rows.
	MaxOrder(ctx context.Context, batchID int64, excludeID int64) (int, error)
	InsertScheduled(ctx context.Context, s model.ScheduledSlot) (model.ScheduledSlot, error)
	UpdateScheduled(ctx context.Context, s model.ScheduledSlot) error
	// SetScheduledPatient points row id at patientID; nil clears it.
	SetScheduledPatient(ctx context.Context, id int64, patientID *int64) error
	// SwapOrders exchanges schedule orders a and b within batchID in one
	// statement and returns the number of rows touched.
	SwapOrders(ctx context.Context, batchID int64, a, b int) (int64, error)
	DeleteScheduledForPatient(ctx context.Context, patientID int64) (int64, error)
}

// Alerts stores alert history, failed schedules and visit logs.
type Alerts interface {
	InsertAlert(ctx context.Context, a model.AlertHistory) (model.AlertHistory, error)
	AlertByID(ctx context.Context, id int64) (model.AlertHistory, error)
	UpdateAlert(ctx context.Context, a model.AlertHistory) error
	// ListAlerts returns alerts newest first. activeOnly keeps alerts with
	// an empty reason or without a response.
	ListAlerts(ctx context.Context, activeOnly bool, page model.Page) ([]model.AlertHistory, error)

	InsertFailed(ctx context.Context, f model.FailedSchedule) (model.FailedSchedule, error)
	FailedByID(ctx context.Context, id int64) (model.FailedSchedule, error)
	UpdateFailed(ctx context.Context, f model.FailedSchedule) error
	ListFailed(ctx context.Context, page model.Page) ([]model.FailedSchedule, error)

	InsertSchedulerLog(ctx context.Context, l model.SchedulerLog) (model.SchedulerLog, error)
	SchedulerLogByID(ctx context.Context, id int64) (model.SchedulerLog, error)
	UpdateSchedulerLog(ctx context.Context, l model.SchedulerLog) error
	ListSchedulerLogs(ctx context.Context, batchID int64, page model.Page) ([]model.SchedulerLog, error)
}

// Vitals stores BP2 CheckMe readings.
type Vitals interface {
	InsertBp2(ctx context.Context, r model.Bp2Reading) (model.Bp2Reading, error)
	Bp2ByID(ctx context.Context, id int64) (model.Bp2Reading, error)
	UpdateBp2(ctx context.Context, r model.Bp2Reading) error
	// ListBp2 returns a page of readings newest first and the total count.
	ListBp2(ctx context.Context, page model.Page) ([]model.Bp2Reading, int, error)
}
