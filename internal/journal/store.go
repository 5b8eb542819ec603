// Package journal keeps a persistent record of transfer cycles.
// Records are append-only, so "did this thing keep working while the
// world was unloaded" is answerable after a restart.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TAMATLT/ferryd/internal/ferry"
)

// Record is the stored outcome of a single transfer cycle. The JSON
// tags serve the status subcommand's machine-readable output.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	Moved     int       `json:"moved"`    // units that left the charger
	Returned  int       `json:"returned"` // units that came back
	Failures  int       `json:"failures"` // consecutive failure count after the cycle
	Remediate bool      `json:"remediate"`
	Cooldown  bool      `json:"cooldown"`
}

// FromCycle converts a loop cycle result into a journal record. The
// record ID is left empty so Append assigns one.
func FromCycle(res ferry.CycleResult) Record {
	return Record{
		Timestamp: res.At,
		Outcome:   res.Outcome.String(),
		Moved:     res.Moved,
		Returned:  res.Returned,
		Failures:  res.Failures,
		Remediate: res.Escalation.Remediate,
		Cooldown:  res.Escalation.Cooldown,
	}
}

// Summary holds aggregated totals for cycles within a time window.
type Summary struct {
	TotalCycles  int   `json:"total_cycles"`
	UnitsMoved   int64 `json:"units_moved"`
	FailedCycles int   `json:"failed_cycles"`
	Remediations int   `json:"remediations"`
	Cooldowns    int   `json:"cooldowns"`
}

// Store is an append-only SQLite journal of transfer cycles.
type Store struct {
	db *sql.DB
}

// NewStore creates a journal store on the given database handle,
// running migrations on first use.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transfer_cycles (
			id        TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			outcome   TEXT NOT NULL,
			moved     INTEGER NOT NULL,
			returned  INTEGER NOT NULL,
			failures  INTEGER NOT NULL,
			remediate INTEGER NOT NULL DEFAULT 0,
			cooldown  INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_cycles_timestamp ON transfer_cycles(timestamp);
	`)
	return err
}

// Append persists a cycle record. If rec.ID is empty a UUIDv7 is
// generated; a zero timestamp becomes time.Now().
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate journal record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfer_cycles
			(id, timestamp, outcome, moved, returned, failures, remediate, cooldown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.Outcome,
		rec.Moved,
		rec.Returned,
		rec.Failures,
		rec.Remediate,
		rec.Cooldown,
	)
	if err != nil {
		return fmt.Errorf("insert journal record: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest cycle records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	// UUIDv7 IDs sort by creation time, which breaks ties between
	// cycles that landed in the same second.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, outcome, moved, returned, failures, remediate, cooldown
		 FROM transfer_cycles
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent cycles: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&rec.ID, &ts, &rec.Outcome, &rec.Moved, &rec.Returned,
			&rec.Failures, &rec.Remediate, &rec.Cooldown); err != nil {
			return nil, fmt.Errorf("scan cycle record: %w", err)
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse cycle timestamp %q: %w", ts, err)
		}
		rec.Timestamp = t
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Summary returns aggregated totals for cycles within [start, end).
func (s *Store) Summary(start, end time.Time) (*Summary, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(moved), 0),
		        COALESCE(SUM(CASE WHEN outcome IN (?, ?) THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(remediate), 0),
		        COALESCE(SUM(cooldown), 0)
		 FROM transfer_cycles
		 WHERE timestamp >= ? AND timestamp < ?`,
		ferry.OutcomeTransferFailed.String(),
		ferry.OutcomeRetrieveFailed.String(),
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)

	var sum Summary
	if err := row.Scan(&sum.TotalCycles, &sum.UnitsMoved, &sum.FailedCycles,
		&sum.Remediations, &sum.Cooldowns); err != nil {
		return nil, fmt.Errorf("query cycle summary: %w", err)
	}
	return &sum, nil
}

// Prune deletes cycle records older than the cutoff and reports how
// many rows were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transfer_cycles WHERE timestamp < ?`,
		before.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}
