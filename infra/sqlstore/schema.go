package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id {{pk}},
		room_name TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS beds (
		id {{pk}},
		bed_name TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS slots (
		id {{pk}},
		room_id BIGINT REFERENCES rooms(id),
		bed_id BIGINT REFERENCES beds(id),
		x DOUBLE PRECISION NOT NULL DEFAULT 0,
		y DOUBLE PRECISION NOT NULL DEFAULT 0,
		yaw DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS slots_room_bed_active ON slots (room_id, bed_id) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS room_waypoints (
		id {{pk}},
		room_id BIGINT NOT NULL UNIQUE REFERENCES rooms(id),
		entry_x DOUBLE PRECISION NOT NULL DEFAULT 0,
		entry_y DOUBLE PRECISION NOT NULL DEFAULT 0,
		entry_yaw DOUBLE PRECISION NOT NULL DEFAULT 0,
		exit_x DOUBLE PRECISION NOT NULL DEFAULT 0,
		exit_y DOUBLE PRECISION NOT NULL DEFAULT 0,
		exit_yaw DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id {{pk}},
		patient_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		gender TEXT NOT NULL DEFAULT '',
		age INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		slot_id BIGINT UNIQUE REFERENCES slots(id)
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id {{pk}},
		batch_name TEXT NOT NULL,
		time_slot TEXT NOT NULL,
		monday BOOLEAN NOT NULL DEFAULT FALSE,
		tuesday BOOLEAN NOT NULL DEFAULT FALSE,
		wednesday BOOLEAN NOT NULL DEFAULT FALSE,
		thursday BOOLEAN NOT NULL DEFAULT FALSE,
		friday BOOLEAN NOT NULL DEFAULT FALSE,
		saturday BOOLEAN NOT NULL DEFAULT FALSE,
		sunday BOOLEAN NOT NULL DEFAULT FALSE,
		trigger_hour INTEGER NOT NULL,
		trigger_minute INTEGER NOT NULL,
		is_stopped BOOLEAN NOT NULL DEFAULT FALSE,
		is_notified BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at BIGINT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_slots (
		id {{pk}},
		patient_id BIGINT UNIQUE REFERENCES patients(id) ON DELETE CASCADE,
		batch_id BIGINT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		row_num INTEGER NOT NULL,
		schedule_order INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS scheduled_slots_batch_row ON scheduled_slots (batch_id, row_num)`,
	`CREATE TABLE IF NOT EXISTS alert_history (
		id {{pk}},
		room TEXT NOT NULL,
		bed TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		responded BOOLEAN NOT NULL DEFAULT FALSE,
		is_timed_out BOOLEAN NOT NULL DEFAULT FALSE,
		is_help BOOLEAN NOT NULL DEFAULT FALSE,
		is_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		not_me BOOLEAN NOT NULL DEFAULT FALSE,
		is_patient_pop BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS failed_schedules (
		id {{pk}},
		room_name TEXT NOT NULL,
		bed_name TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		responded BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scheduler_logs (
		id {{pk}},
		room_id BIGINT,
		bed_id BIGINT,
		batch_id BIGINT NOT NULL,
		is_successful BOOLEAN NOT NULL DEFAULT FALSE,
		is_attended BOOLEAN NOT NULL DEFAULT FALSE,
		is_failed BOOLEAN NOT NULL DEFAULT FALSE,
		is_timeout BOOLEAN NOT NULL DEFAULT FALSE,
		not_patient BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bp2_readings (
		id {{pk}},
		patient_id BIGINT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		sys TEXT NOT NULL DEFAULT '',
		dia TEXT NOT NULL DEFAULT '',
		map_pressure TEXT NOT NULL DEFAULT '',
		pulse_rate_note TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bp2_readings_created ON bp2_readings (created_at)`,
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, strings.ReplaceAll(stmt, "{{pk}}", pk)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
