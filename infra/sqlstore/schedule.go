package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/medbot/rounds/core/model"
)

const scheduledSelect = `SELECT id, patient_id, batch_id, row_num, schedule_order, is_active, created_at
	FROM scheduled_slots`

func scanScheduled(sc scanner) (model.ScheduledSlot, error) {
	var s model.ScheduledSlot
	var patient sql.NullInt64
	var created int64
	if err := sc.Scan(&s.ID, &patient, &s.BatchID, &s.RowNumber, &s.ScheduleOrder, &s.Active, &created); err != nil {
		return model.ScheduledSlot{}, err
	}
	s.PatientID = patient.Int64
	s.CreatedAt = fromMillis(created)
	return s, nil
}

func (c conn) ScheduledByID(ctx context.Context, id int64) (model.ScheduledSlot, error) {
	s, err := scanScheduled(c.queryRow(ctx, scheduledSelect+` WHERE id = ?`, id))
	if err != nil {
		return model.ScheduledSlot{}, mapErr(err, "scheduled slot")
	}
	return s, nil
}

func (c conn) ScheduledByPatient(ctx context.Context, patientID int64) (model.ScheduledSlot, error) {
	s, err := scanScheduled(c.queryRow(ctx, scheduledSelect+` WHERE patient_id = ?`, patientID))
	if err != nil {
		return model.ScheduledSlot{}, mapErr(err, "scheduled slot for patient")
	}
	return s, nil
}

func (c conn) OrderForRow(ctx context.Context, batchID int64, row int, excludeID int64) (int, bool, error) {
	var order int
	err := c.queryRow(ctx, `SELECT schedule_order FROM scheduled_slots
		WHERE batch_id = ? AND row_num = ? AND id <> ? ORDER BY id LIMIT 1`, batchID, row, excludeID).Scan(&order)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, mapErr(err, "order for row")
	}
	return order, true, nil
}

func (c conn) MaxOrder(ctx context.Context, batchID int64, excludeID int64) (int, error) {
	var top sql.NullInt64
	if err := c.queryRow(ctx, `SELECT MAX(schedule_order) FROM scheduled_slots WHERE batch_id = ? AND id <> ?`,
		batchID, excludeID).Scan(&top); err != nil {
		return 0, mapErr(err, "max order")
	}
	return int(top.Int64), nil
}

func (c conn) InsertScheduled(ctx context.Context, s model.ScheduledSlot) (model.ScheduledSlot, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	id, err := c.insert(ctx, `INSERT INTO scheduled_slots (patient_id, batch_id, row_num, schedule_order, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, s.PatientID, s.BatchID, s.RowNumber, s.ScheduleOrder, s.Active, toMillis(s.CreatedAt))
	if err != nil {
		return model.ScheduledSlot{}, err
	}
	s.ID = id
	return s, nil
}

func (c conn) UpdateScheduled(ctx context.Context, s model.ScheduledSlot) error {
	res, err := c.exec(ctx, `UPDATE scheduled_slots SET patient_id = ?, batch_id = ?, row_num = ?, schedule_order = ?,
		is_active = ? WHERE id = ?`, s.PatientID, s.BatchID, s.RowNumber, s.ScheduleOrder, s.Active, s.ID)
	if err != nil {
		return mapErr(err, "update scheduled slot")
	}
	return requireAffected(res, "scheduled slot", s.ID)
}

func (c conn) SetScheduledPatient(ctx context.Context, id int64, patientID *int64) error {
	res, err := c.exec(ctx, `UPDATE scheduled_slots SET patient_id = ? WHERE id = ?`, nullID(patientID), id)
	if err != nil {
		return mapErr(err, "set scheduled patient")
	}
	return requireAffected(res, "scheduled slot", id)
}

func (c conn) SwapOrders(ctx context.Context, batchID int64, a, b int) (int64, error) {
	res, err := c.exec(ctx, `UPDATE scheduled_slots SET schedule_order = CASE
		WHEN schedule_order = ? THEN ?
		WHEN schedule_order = ? THEN ?
		ELSE schedule_order END
		WHERE batch_id = ? AND schedule_order IN (?, ?)`, a, b, b, a, batchID, a, b)
	if err != nil {
		return 0, mapErr(err, "swap orders")
	}
	return res.RowsAffected()
}

func (c conn) DeleteScheduledForPatient(ctx context.Context, patientID int64) (int64, error) {
	res, err := c.exec(ctx, `DELETE FROM scheduled_slots WHERE patient_id = ?`, patientID)
	if err != nil {
		return 0, mapErr(err, "delete scheduled slot")
	}
	return res.RowsAffected()
}

func (c conn) DeleteScheduled(ctx context.Context, id int64) (bool, error) {
	res, err := c.exec(ctx, `DELETE FROM scheduled_slots WHERE id = ?`, id)
	if err != nil {
		return false, mapErr(err, "delete scheduled slot")
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (c conn) ListScheduled(ctx context.Context, batchID int64) ([]model.ScheduledSlotView, error) {
	q := `SELECT ss.id, ss.patient_id, ss.batch_id, ss.row_num, ss.schedule_order, ss.is_active, ss.created_at,
		COALESCE(p.patient_id, ''), COALESCE(p.name, ''), COALESCE(r.room_name, ''), COALESCE(b.bed_name, ''),
		COALESCE(s.x, 0), COALESCE(s.y, 0), COALESCE(s.yaw, 0), bt.batch_name, p.slot_id
		FROM scheduled_slots ss
		JOIN batches bt ON bt.id = ss.batch_id
		LEFT JOIN patients p ON p.id = ss.patient_id
		LEFT JOIN slots s ON s.id = p.slot_id
		LEFT JOIN rooms r ON r.id = s.room_id
		LEFT JOIN beds b ON b.id = s.bed_id`
	var args []any
	if batchID != 0 {
		q += ` WHERE ss.batch_id = ?`
		args = append(args, batchID)
	}
	rows, err := c.query(ctx, q+` ORDER BY ss.row_num, ss.id`, args...)
	if err != nil {
		return nil, mapErr(err, "list scheduled")
	}
	defer func() { _ = rows.Close() }()
	var out []model.ScheduledSlotView
	for rows.Next() {
		var v model.ScheduledSlotView
		var patient, slot sql.NullInt64
		var created int64
		if err := rows.Scan(&v.ID, &patient, &v.BatchID, &v.RowNumber, &v.ScheduleOrder, &v.Active, &created,
			&v.PatientRef, &v.Patient, &v.RoomName, &v.BedName, &v.Pose.X, &v.Pose.Y, &v.Pose.Yaw,
			&v.BatchName, &slot); err != nil {
			return nil, err
		}
		v.PatientID = patient.Int64
		v.CreatedAt = fromMillis(created)
		v.SlotID = idPtr(slot)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (c conn) DispatchRows(ctx context.Context, batchID int64) ([]model.DispatchRow, error) {
	rows, err := c.query(ctx, `SELECT ss.id, ss.row_num, ss.schedule_order, p.id,
		COALESCE(r.room_name, ''), COALESCE(b.bed_name, ''), s.x, s.y, s.yaw
		FROM scheduled_slots ss
		JOIN patients p ON p.id = ss.patient_id
		JOIN slots s ON s.id = p.slot_id
		LEFT JOIN rooms r ON r.id = s.room_id
		LEFT JOIN beds b ON b.id = s.bed_id
		WHERE ss.batch_id = ? AND ss.is_active = ?
		ORDER BY ss.row_num, ss.id`, batchID, true)
	if err != nil {
		return nil, mapErr(err, "dispatch rows")
	}
	defer func() { _ = rows.Close() }()
	var out []model.DispatchRow
	for rows.Next() {
		var r model.DispatchRow
		if err := rows.Scan(&r.ScheduledID, &r.RowNumber, &r.ScheduleOrder, &r.PatientID,
			&r.RoomName, &r.BedName, &r.Pose.X, &r.Pose.Y, &r.Pose.Yaw); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
