package sqlstore

import (
	"context"
	"time"

	"github.com/medbot/rounds/core/model"
)

const bp2Select = `SELECT v.id, v.patient_id, p.name, v.sys, v.dia, v.map_pressure, v.pulse_rate_note,
	v.is_active, v.created_at, v.updated_at
	FROM bp2_readings v JOIN patients p ON p.id = v.patient_id`

func scanBp2(sc scanner) (model.Bp2Reading, error) {
	var r model.Bp2Reading
	var created, updated int64
	if err := sc.Scan(&r.ID, &r.PatientID, &r.PatientName, &r.Sys, &r.Dia, &r.Map, &r.PulseRateNote,
		&r.Active, &created, &updated); err != nil {
		return model.Bp2Reading{}, err
	}
	r.CreatedAt, r.UpdatedAt = fromMillis(created), fromMillis(updated)
	return r, nil
}

func (c conn) InsertBp2(ctx context.Context, r model.Bp2Reading) (model.Bp2Reading, error) {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	id, err := c.insert(ctx, `INSERT INTO bp2_readings (patient_id, sys, dia, map_pressure, pulse_rate_note,
		is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PatientID, r.Sys, r.Dia, r.Map, r.PulseRateNote, r.Active, toMillis(r.CreatedAt), toMillis(now))
	if err != nil {
		return model.Bp2Reading{}, err
	}
	return c.Bp2ByID(ctx, id)
}

func (c conn) Bp2ByID(ctx context.Context, id int64) (model.Bp2Reading, error) {
	r, err := scanBp2(c.queryRow(ctx, bp2Select+` WHERE v.id = ?`, id))
	if err != nil {
		return model.Bp2Reading{}, mapErr(err, "bp2 reading")
	}
	return r, nil
}

func (c conn) UpdateBp2(ctx context.Context, r model.Bp2Reading) error {
	res, err := c.exec(ctx, `UPDATE bp2_readings SET patient_id = ?, sys = ?, dia = ?, map_pressure = ?,
		pulse_rate_note = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		r.PatientID, r.Sys, r.Dia, r.Map, r.PulseRateNote, r.Active, toMillis(time.Now().UTC()), r.ID)
	if err != nil {
		return mapErr(err, "update bp2 reading")
	}
	return requireAffected(res, "bp2 reading", r.ID)
}

func (c conn) ListBp2(ctx context.Context, page model.Page) ([]model.Bp2Reading, int, error) {
	page = page.Normalize()
	var total int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM bp2_readings`).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count bp2 readings")
	}
	rows, err := c.query(ctx, bp2Select+` ORDER BY v.created_at DESC, v.id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, 0, mapErr(err, "bp2 readings")
	}
	defer func() { _ = rows.Close() }()
	var out []model.Bp2Reading
	for rows.Next() {
		r, err := scanBp2(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
