package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const planLogSchema = `
CREATE TABLE IF NOT EXISTS plan_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	minute TEXT NOT NULL,
	batch_id INTEGER NOT NULL,
	batch_name TEXT NOT NULL DEFAULT '',
	beds INTEGER NOT NULL DEFAULT 0,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS plan_logs_batch_ts ON plan_logs (batch_id, ts);`

// SQLiteStore keeps plan records in a SQLite table. The summary columns
// serve the filters; the full record is stored as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(planLogSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("plan log schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec PlanRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plan_logs (ts, minute, batch_id, batch_name, beds, record) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.Minute, rec.BatchID, rec.BatchName, rec.Beds, string(b))
	return err
}

// Query returns records matching q, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]PlanRecord, error) {
	var where []string
	var args []any
	if !q.Start.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, q.End.UnixNano())
	}
	if q.BatchID != 0 {
		where = append(where, "batch_id = ?")
		args = append(args, q.BatchID)
	}
	query := `SELECT id, ts, record FROM plan_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if q.Limit > 0 {
		query = `SELECT id, ts, record FROM (` + query + ` ORDER BY ts DESC, id DESC LIMIT ?)`
		args = append(args, q.Limit)
	}
	query += ` ORDER BY ts, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []PlanRecord
	for rows.Next() {
		var (
			id, ts int64
			data   string
		)
		if err := rows.Scan(&id, &ts, &data); err != nil {
			return nil, err
		}
		var r PlanRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal plan record %d: %w", id, err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
