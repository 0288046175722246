package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/medbot/rounds/core/model"
)

const alertSelect = `SELECT id, room, bed, reason, responded, is_timed_out, is_help, is_cancelled, not_me,
	is_patient_pop, created_at FROM alert_history`

func scanAlert(sc scanner) (model.AlertHistory, error) {
	var a model.AlertHistory
	var created int64
	if err := sc.Scan(&a.ID, &a.Room, &a.Bed, &a.Reason, &a.Responded, &a.TimedOut, &a.Help, &a.Cancelled,
		&a.NotMe, &a.PatientPop, &created); err != nil {
		return model.AlertHistory{}, err
	}
	a.CreatedAt = fromMillis(created)
	return a, nil
}

func (c conn) InsertAlert(ctx context.Context, a model.AlertHistory) (model.AlertHistory, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	id, err := c.insert(ctx, `INSERT INTO alert_history (room, bed, reason, responded, is_timed_out, is_help,
		is_cancelled, not_me, is_patient_pop, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Room, a.Bed, a.Reason, a.Responded, a.TimedOut, a.Help, a.Cancelled, a.NotMe, a.PatientPop, toMillis(a.CreatedAt))
	if err != nil {
		return model.AlertHistory{}, err
	}
	a.ID = id
	return a, nil
}

func (c conn) AlertByID(ctx context.Context, id int64) (model.AlertHistory, error) {
	a, err := scanAlert(c.queryRow(ctx, alertSelect+` WHERE id = ?`, id))
	if err != nil {
		return model.AlertHistory{}, mapErr(err, "alert")
	}
	return a, nil
}

func (c conn) UpdateAlert(ctx context.Context, a model.AlertHistory) error {
	res, err := c.exec(ctx, `UPDATE alert_history SET reason = ?, responded = ?, is_timed_out = ?, is_help = ?,
		is_cancelled = ?, not_me = ?, is_patient_pop = ? WHERE id = ?`,
		a.Reason, a.Responded, a.TimedOut, a.Help, a.Cancelled, a.NotMe, a.PatientPop, a.ID)
	if err != nil {
		return mapErr(err, "update alert")
	}
	return requireAffected(res, "alert", a.ID)
}

func (c conn) ListAlerts(ctx context.Context, activeOnly bool, page model.Page) ([]model.AlertHistory, error) {
	page = page.Normalize()
	q := alertSelect
	var args []any
	if activeOnly {
		q += ` WHERE reason = '' OR responded = ?`
		args = append(args, false)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset)
	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "alerts")
	}
	defer func() { _ = rows.Close() }()
	var out []model.AlertHistory
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const failedSelect = `SELECT id, room_name, bed_name, reason, responded, created_at, updated_at FROM failed_schedules`

func scanFailed(sc scanner) (model.FailedSchedule, error) {
	var f model.FailedSchedule
	var created, updated int64
	if err := sc.Scan(&f.ID, &f.Room, &f.Bed, &f.Reason, &f.Responded, &created, &updated); err != nil {
		return model.FailedSchedule{}, err
	}
	f.CreatedAt = fromMillis(created)
	f.UpdatedAt = fromMillis(updated)
	return f, nil
}

func (c conn) InsertFailed(ctx context.Context, f model.FailedSchedule) (model.FailedSchedule, error) {
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = f.CreatedAt
	id, err := c.insert(ctx, `INSERT INTO failed_schedules (room_name, bed_name, reason, responded, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, f.Room, f.Bed, f.Reason, f.Responded, toMillis(f.CreatedAt), toMillis(f.UpdatedAt))
	if err != nil {
		return model.FailedSchedule{}, err
	}
	f.ID = id
	return f, nil
}

func (c conn) FailedByID(ctx context.Context, id int64) (model.FailedSchedule, error) {
	f, err := scanFailed(c.queryRow(ctx, failedSelect+` WHERE id = ?`, id))
	if err != nil {
		return model.FailedSchedule{}, mapErr(err, "failed schedule")
	}
	return f, nil
}

func (c conn) UpdateFailed(ctx context.Context, f model.FailedSchedule) error {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	res, err := c.exec(ctx, `UPDATE failed_schedules SET reason = ?, responded = ?, updated_at = ? WHERE id = ?`,
		f.Reason, f.Responded, toMillis(f.UpdatedAt), f.ID)
	if err != nil {
		return mapErr(err, "update failed schedule")
	}
	return requireAffected(res, "failed schedule", f.ID)
}

func (c conn) ListFailed(ctx context.Context, page model.Page) ([]model.FailedSchedule, error) {
	page = page.Normalize()
	rows, err := c.query(ctx, failedSelect+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, mapErr(err, "failed schedules")
	}
	defer func() { _ = rows.Close() }()
	var out []model.FailedSchedule
	for rows.Next() {
		f, err := scanFailed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const logSelect = `SELECT id, room_id, bed_id, batch_id, is_successful, is_attended, is_failed, is_timeout,
	not_patient, created_at FROM scheduler_logs`

func scanLog(sc scanner) (model.SchedulerLog, error) {
	var l model.SchedulerLog
	var room, bed sql.NullInt64
	var created int64
	if err := sc.Scan(&l.ID, &room, &bed, &l.BatchID, &l.Successful, &l.Attended, &l.Failed, &l.Timeout,
		&l.NotPatient, &created); err != nil {
		return model.SchedulerLog{}, err
	}
	l.RoomID = idPtr(room)
	l.BedID = idPtr(bed)
	l.CreatedAt = fromMillis(created)
	return l, nil
}

func (c conn) InsertSchedulerLog(ctx context.Context, l model.SchedulerLog) (model.SchedulerLog, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	id, err := c.insert(ctx, `INSERT INTO scheduler_logs (room_id, bed_id, batch_id, is_successful, is_attended,
		is_failed, is_timeout, not_patient, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullID(l.RoomID), nullID(l.BedID), l.BatchID, l.Successful, l.Attended, l.Failed, l.Timeout, l.NotPatient,
		toMillis(l.CreatedAt))
	if err != nil {
		return model.SchedulerLog{}, err
	}
	l.ID = id
	return l, nil
}

func (c conn) SchedulerLogByID(ctx context.Context, id int64) (model.SchedulerLog, error) {
	l, err := scanLog(c.queryRow(ctx, logSelect+` WHERE id = ?`, id))
	if err != nil {
		return model.SchedulerLog{}, mapErr(err, "scheduler log")
	}
	return l, nil
}

func (c conn) UpdateSchedulerLog(ctx context.Context, l model.SchedulerLog) error {
	res, err := c.exec(ctx, `UPDATE scheduler_logs SET is_successful = ?, is_attended = ?, is_failed = ?,
		is_timeout = ?, not_patient = ? WHERE id = ?`, l.Successful, l.Attended, l.Failed, l.Timeout, l.NotPatient, l.ID)
	if err != nil {
		return mapErr(err, "update scheduler log")
	}
	return requireAffected(res, "scheduler log", l.ID)
}

func (c conn) ListSchedulerLogs(ctx context.Context, batchID int64, page model.Page) ([]model.SchedulerLog, error) {
	page = page.Normalize()
	q := logSelect
	var args []any
	if batchID != 0 {
		q += ` WHERE batch_id = ?`
		args = append(args, batchID)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset)
	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "scheduler logs")
	}
	defer func() { _ = rows.Close() }()
	var out []model.SchedulerLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
