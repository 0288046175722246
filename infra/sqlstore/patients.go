package sqlstore

import (
	"context"
	"database/sql"

	"github.com/medbot/rounds/core/model"
)

const patientSelect = `SELECT id, patient_id, name, gender, age, is_active, slot_id FROM patients`

func scanPatient(sc scanner) (model.Patient, error) {
	var p model.Patient
	var slot sql.NullInt64
	if err := sc.Scan(&p.ID, &p.ExternalID, &p.Name, &p.Gender, &p.Age, &p.Active, &slot); err != nil {
		return model.Patient{}, err
	}
	p.SlotID = idPtr(slot)
	return p, nil
}

func (c conn) InsertPatient(ctx context.Context, p model.Patient) (model.Patient, error) {
	id, err := c.insert(ctx, `INSERT INTO patients (patient_id, name, gender, age, is_active, slot_id)
		VALUES (?, ?, ?, ?, ?, ?)`, p.ExternalID, p.Name, p.Gender, p.Age, p.Active, nullID(p.SlotID))
	if err != nil {
		return model.Patient{}, err
	}
	p.ID = id
	return p, nil
}

func (c conn) PatientByID(ctx context.Context, id int64) (model.Patient, error) {
	p, err := scanPatient(c.queryRow(ctx, patientSelect+` WHERE id = ?`, id))
	if err != nil {
		return model.Patient{}, mapErr(err, "patient")
	}
	return p, nil
}

func (c conn) PatientBySlot(ctx context.Context, slotID int64) (model.Patient, error) {
	p, err := scanPatient(c.queryRow(ctx, patientSelect+` WHERE slot_id = ? AND is_active = ?`, slotID, true))
	if err != nil {
		return model.Patient{}, mapErr(err, "patient in slot")
	}
	return p, nil
}

func (c conn) UpdatePatient(ctx context.Context, p model.Patient) error {
	res, err := c.exec(ctx, `UPDATE patients SET patient_id = ?, name = ?, gender = ?, age = ?, is_active = ?, slot_id = ?
		WHERE id = ?`, p.ExternalID, p.Name, p.Gender, p.Age, p.Active, nullID(p.SlotID), p.ID)
	if err != nil {
		return mapErr(err, "update patient")
	}
	return requireAffected(res, "patient", p.ID)
}

func (c conn) ActivePatientsWithSlot(ctx context.Context) ([]model.PatientView, error) {
	rows, err := c.query(ctx, `SELECT p.id, p.patient_id, p.name, p.gender, p.age, p.is_active, p.slot_id,
		s.id, s.room_id, s.bed_id, COALESCE(r.room_name, ''), COALESCE(b.bed_name, ''), s.x, s.y, s.yaw, s.is_active
		FROM patients p
		JOIN slots s ON s.id = p.slot_id
		LEFT JOIN rooms r ON r.id = s.room_id
		LEFT JOIN beds b ON b.id = s.bed_id
		WHERE p.is_active = ?
		ORDER BY p.id`, true)
	if err != nil {
		return nil, mapErr(err, "active patients")
	}
	defer func() { _ = rows.Close() }()
	var out []model.PatientView
	for rows.Next() {
		var v model.PatientView
		var pslot, room, bed sql.NullInt64
		var s model.Slot
		if err := rows.Scan(&v.ID, &v.ExternalID, &v.Name, &v.Gender, &v.Age, &v.Active, &pslot,
			&s.ID, &room, &bed, &s.RoomName, &s.BedName, &s.X, &s.Y, &s.Yaw, &s.Active); err != nil {
			return nil, err
		}
		v.SlotID = idPtr(pslot)
		s.RoomID = idPtr(room)
		s.BedID = idPtr(bed)
		v.Slot = &s
		out = append(out, v)
	}
	return out, rows.Err()
}
