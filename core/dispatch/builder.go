// Package dispatch turns the flat scheduled-slot rows of a batch into the
// room-grouped plan broadcast to the robot.
package dispatch

import (
	"context"
	"fmt"

	"github.com/medbot/rounds/core/model"
)

// Source reads the rows and waypoints a plan is built from.
type Source interface {
	// DispatchRows returns the active rows of a batch ordered by
	// (row_number, id).
	DispatchRows(ctx context.Context, batchID int64) ([]model.DispatchRow, error)
	WaypointByRoomName(ctx context.Context, name string) (model.RoomWaypoint, error)
}

// BuildError reports a batch whose plan could not be built.
type BuildError struct {
	BatchID int64
	Room    string
	Err     error
}

func (e *BuildError) Error() string {
	if e.Room == "" {
		return fmt.Sprintf("build plan for batch %d: %v", e.BatchID, e.Err)
	}
	return fmt.Sprintf("build plan for batch %d: room %s: %v", e.BatchID, e.Room, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder builds dispatch plans. It holds no state between calls.
type Builder struct {
	src Source
}

// NewBuilder returns a Builder reading from src.
func NewBuilder(src Source) *Builder { return &Builder{src: src} }

// Build returns the plan of batchID. Rooms follow row number order, not
// schedule order. A room without a waypoint fails the whole batch.
func (b *Builder) Build(ctx context.Context, batchID int64) (Plan, error) {
	rows, err := b.src.DispatchRows(ctx, batchID)
	if err != nil {
		return nil, &BuildError{BatchID: batchID, Err: err}
	}
	groups := GroupByRow(rows,
		func(r model.DispatchRow) int { return r.RowNumber },
		func(r model.DispatchRow) int64 { return r.ScheduledID })

	plan := make(Plan, 0, len(groups))
	for _, g := range groups {
		room := model.RoomName(g.RowNumber)
		wp, err := b.src.WaypointByRoomName(ctx, room)
		if err != nil {
			return nil, &BuildError{BatchID: batchID, Room: room, Err: err}
		}
		rg := RoomGroup{
			Room:      room,
			RowNumber: g.RowNumber,
			Entry:     wp.Entry,
			Exit:      wp.Exit,
			Beds:      make([]BedStop, 0, len(g.Items)),
		}
		for _, r := range g.Items {
			rg.Beds = append(rg.Beds, BedStop{BedName: r.BedName, X: r.Pose.X, Y: r.Pose.Y, Yaw: r.Pose.Yaw})
		}
		plan = append(plan, rg)
	}
	return plan, nil
}
