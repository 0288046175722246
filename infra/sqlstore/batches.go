package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medbot/rounds/core/model"
)

const batchSelect = `SELECT id, batch_name, time_slot, monday, tuesday, wednesday, thursday, friday,
	saturday, sunday, trigger_hour, trigger_minute, is_stopped, is_notified, completed_at, created_at
	FROM batches`

func scanBatch(sc scanner) (model.Batch, error) {
	var b model.Batch
	var slot string
	var completed sql.NullInt64
	var created int64
	d := &b.Days
	if err := sc.Scan(&b.ID, &b.Name, &slot, &d.Monday, &d.Tuesday, &d.Wednesday, &d.Thursday, &d.Friday,
		&d.Saturday, &d.Sunday, &b.TriggerTime.Hour, &b.TriggerTime.Minute, &b.Stopped, &b.Notified,
		&completed, &created); err != nil {
		return model.Batch{}, err
	}
	b.TimeSlot = model.TimeSlot(slot)
	b.CompletedAt = timePtr(completed)
	b.CreatedAt = fromMillis(created)
	return b, nil
}

func (c conn) listBatches(ctx context.Context, query string, args ...any) ([]model.Batch, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "batches")
	}
	defer func() { _ = rows.Close() }()
	var out []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (c conn) InsertBatch(ctx context.Context, b model.Batch) (model.Batch, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	d := b.Days
	id, err := c.insert(ctx, `INSERT INTO batches (batch_name, time_slot, monday, tuesday, wednesday, thursday,
		friday, saturday, sunday, trigger_hour, trigger_minute, is_stopped, is_notified, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, string(b.TimeSlot), d.Monday, d.Tuesday, d.Wednesday, d.Thursday, d.Friday, d.Saturday, d.Sunday,
		b.TriggerTime.Hour, b.TriggerTime.Minute, b.Stopped, b.Notified, nullMillis(b.CompletedAt), toMillis(b.CreatedAt))
	if err != nil {
		return model.Batch{}, err
	}
	b.ID = id
	return b, nil
}

func (c conn) UpdateBatch(ctx context.Context, b model.Batch) error {
	d := b.Days
	res, err := c.exec(ctx, `UPDATE batches SET batch_name = ?, time_slot = ?, monday = ?, tuesday = ?,
		wednesday = ?, thursday = ?, friday = ?, saturday = ?, sunday = ?, trigger_hour = ?, trigger_minute = ?,
		is_stopped = ?, is_notified = ?, completed_at = ? WHERE id = ?`,
		b.Name, string(b.TimeSlot), d.Monday, d.Tuesday, d.Wednesday, d.Thursday, d.Friday, d.Saturday, d.Sunday,
		b.TriggerTime.Hour, b.TriggerTime.Minute, b.Stopped, b.Notified, nullMillis(b.CompletedAt), b.ID)
	if err != nil {
		return mapErr(err, "update batch")
	}
	return requireAffected(res, "batch", b.ID)
}

func (c conn) BatchByID(ctx context.Context, id int64) (model.Batch, error) {
	b, err := scanBatch(c.queryRow(ctx, batchSelect+` WHERE id = ?`, id))
	if err != nil {
		return model.Batch{}, mapErr(err, "batch")
	}
	return b, nil
}

func (c conn) ListBatches(ctx context.Context, activeOnly bool) ([]model.Batch, error) {
	if activeOnly {
		return c.listBatches(ctx, batchSelect+` WHERE is_stopped = ? ORDER BY created_at DESC, id DESC`, false)
	}
	return c.listBatches(ctx, batchSelect+` ORDER BY created_at DESC, id DESC`)
}

// weekdayColumn maps a weekday to its flag column.
func weekdayColumn(d time.Weekday) (string, error) {
	switch d {
	case time.Monday:
		return "monday", nil
	case time.Tuesday:
		return "tuesday", nil
	case time.Wednesday:
		return "wednesday", nil
	case time.Thursday:
		return "thursday", nil
	case time.Friday:
		return "friday", nil
	case time.Saturday:
		return "saturday", nil
	case time.Sunday:
		return "sunday", nil
	}
	return "", fmt.Errorf("invalid weekday %d", d)
}

func (c conn) DueCandidates(ctx context.Context, day time.Weekday) ([]model.Batch, error) {
	col, err := weekdayColumn(day)
	if err != nil {
		return nil, err
	}
	return c.listBatches(ctx, batchSelect+` WHERE `+col+` = ? AND is_stopped = ? ORDER BY id`, true, false)
}

func (c conn) ResetCompletion(ctx context.Context) (int64, error) {
	res, err := c.exec(ctx, `UPDATE batches SET completed_at = NULL, is_notified = ?`, false)
	if err != nil {
		return 0, mapErr(err, "reset completion")
	}
	return res.RowsAffected()
}
