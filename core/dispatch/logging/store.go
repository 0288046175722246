package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/medbot/rounds/core/dispatch"
)

// PlanRecord captures one published dispatch plan.
type PlanRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	BatchID   int64         `json:"batch_id"`
	BatchName string        `json:"batch_name"`
	Minute    string        `json:"minute"`
	Rooms     int           `json:"rooms"`
	Beds      int           `json:"beds"`
	Plan      dispatch.Plan `json:"plan"`
}

// NewPlanRecord summarises plan for storage.
func NewPlanRecord(ts time.Time, batchID int64, batchName string, plan dispatch.Plan) PlanRecord {
	return PlanRecord{
		Timestamp: ts,
		BatchID:   batchID,
		BatchName: batchName,
		Minute:    ts.Format("2006-01-02T15:04"),
		Rooms:     len(plan),
		Beds:      plan.BedCount(),
		Plan:      plan,
	}
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	BatchID int64
	// Limit keeps only the most recent matches. Zero keeps all.
	Limit int
}

// latest applies q.Limit to records sorted oldest first.
func (q LogQuery) latest(records []PlanRecord) []PlanRecord {
	if q.Limit <= 0 || len(records) <= q.Limit {
		return records
	}
	return records[len(records)-q.Limit:]
}

func (q LogQuery) matches(r PlanRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return q.BatchID == 0 || r.BatchID == q.BatchID
}

// LogStore persists PlanRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec PlanRecord) error
	Query(ctx context.Context, q LogQuery) ([]PlanRecord, error)
	Close() error
}

// Options configures Open.
type Options struct {
	// Backend is "jsonl" or "sqlite".
	Backend    string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open returns the store selected by opts. A jsonl backend with a positive
// MaxSizeMB rotates its file.
func Open(opts Options) (LogStore, error) {
	switch opts.Backend {
	case "jsonl", "":
		if opts.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(opts.Path, opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays)
		}
		return NewJSONLStore(opts.Path)
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	}
	return nil, fmt.Errorf("unknown plan log backend %s", opts.Backend)
}
