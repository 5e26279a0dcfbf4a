// Package history implements a local run ledger over SQLite (spec.md §6
// supplemental feature: a persistent record of completed runs for
// re-querying without keeping every result in memory), grounded in
// SQLiteProvider's connection setup and schema-on-first-open pattern.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stbrinkmann/shadowscan/internal/log"
	"github.com/stbrinkmann/shadowscan/internal/pipeline"
)

// Entry is one row of the run ledger: a headline summary of a completed
// run, cheap enough to list without reloading the full shadow stack.
type Entry struct {
	RunID                  string
	CreatedAt              time.Time
	AOICellCount           int
	TimestampCount         int
	BufferMeters           float64
	WallTimeSeconds        float64
	AvgShadowFraction      float64
	TotalAvailableSolarHrs float64
}

// Ledger is a SQLite-backed store of run entries.
type Ledger struct {
	db *sql.DB
}

// Open opens (and, if needed, initializes) the run ledger at dbPath, using
// the same busy-timeout/WAL/synchronous connection parameters the
// teacher's SQLiteProvider uses for a single-writer, many-reader workload.
func Open(dbPath string) (*Ledger, error) {
	connStr := fmt.Sprintf("%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping run ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.initializeSchemaIfNeeded(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run ledger schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) initializeSchemaIfNeeded() error {
	var tableName string
	err := l.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='runs'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return l.initializeSchema()
	} else if err != nil {
		return fmt.Errorf("failed to check for existing tables: %w", err)
	}
	return nil
}

func (l *Ledger) initializeSchema() error {
	const schema = `
CREATE TABLE runs (
	run_id                    TEXT PRIMARY KEY,
	created_at                TEXT NOT NULL,
	aoi_cell_count            INTEGER NOT NULL,
	timestamp_count           INTEGER NOT NULL,
	buffer_meters             REAL NOT NULL,
	wall_time_seconds         REAL NOT NULL,
	avg_shadow_fraction       REAL NOT NULL,
	total_available_solar_hrs REAL NOT NULL
);
CREATE INDEX idx_runs_created_at ON runs(created_at);
`
	_, err := l.db.Exec(schema)
	return err
}

// Record inserts one completed run's headline aggregates into the ledger.
func (l *Ledger) Record(result *pipeline.Result, wallTime time.Duration) error {
	avgFraction := 0.0
	if n := len(result.Summary.AvgShadowFraction); n > 0 {
		sum := 0.0
		for _, v := range result.Summary.AvgShadowFraction {
			sum += v
		}
		avgFraction = sum / float64(n)
	}

	_, err := l.db.Exec(
		`INSERT INTO runs (run_id, created_at, aoi_cell_count, timestamp_count, buffer_meters, wall_time_seconds, avg_shadow_fraction, total_available_solar_hrs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		time.Now().UTC().Format(time.RFC3339),
		len(result.AOICells),
		len(result.Timestamps),
		result.ClipResult.BufferMeters,
		wallTime.Seconds(),
		avgFraction,
		result.Summary.TotalAvailableSolarHrs,
	)
	if err != nil {
		log.Errorf("history: failed to record run %s: %v", result.RunID, err)
		return err
	}
	return nil
}

// List returns run entries ordered most-recent-first, up to limit (0 means
// no limit).
func (l *Ledger) List(limit int) ([]Entry, error) {
	query := `SELECT run_id, created_at, aoi_cell_count, timestamp_count, buffer_meters, wall_time_seconds, avg_shadow_fraction, total_available_solar_hrs
	          FROM runs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.RunID, &createdAt, &e.AOICellCount, &e.TimestampCount, &e.BufferMeters, &e.WallTimeSeconds, &e.AvgShadowFraction, &e.TotalAvailableSolarHrs); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
