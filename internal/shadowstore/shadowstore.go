// Package shadowstore implements the optional Postgres/Timescale sink
// (spec.md §6 supplemental feature: a durable per-cell, per-timestamp
// archive for runs too large to keep resident, or that downstream
// dashboards need to query directly). Grounded in Storage's GORM
// connection setup and AerisWeatherForecastRecord's pgtype.JSONB rollup
// column.
package shadowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgtype"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stbrinkmann/shadowscan/internal/log"
	"github.com/stbrinkmann/shadowscan/internal/pipeline"
	"github.com/stbrinkmann/shadowscan/internal/stats"
)

// Tabler lets GORM models override their table name, the same interface
// the teacher declares for its Reading/record types.
type Tabler interface {
	TableName() string
}

// CellSample is one (run, timestamp, cell) row: a single shadow fraction
// observation plus the monthly rollup for its cell; the rollup is repeated
// on every timestamp row of that cell.
type CellSample struct {
	ID             uint         `gorm:"primaryKey"`
	RunID          string       `gorm:"uniqueIndex:idx_run_ts_cell,not null"`
	Timestamp      time.Time    `gorm:"uniqueIndex:idx_run_ts_cell,not null"`
	CellIndex      int          `gorm:"uniqueIndex:idx_run_ts_cell,not null"`
	ShadowFraction float32      `gorm:"not null"`
	MonthlyRollup  pgtype.JSONB `gorm:"type:jsonb;default:'[]';not null"`
}

func (CellSample) TableName() string {
	return "shadow_samples"
}

// Store holds a GORM connection to the optional shadow sample archive.
type Store struct {
	DB *gorm.DB
}

// New connects to Postgres/Timescale and migrates the shadow_samples
// table, mirroring Storage.New's gorm.Open + AutoMigrate shape.
func New(ctx context.Context, connectionString string) (*Store, error) {
	log.Info("connecting to shadow sample store...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{})
	if err != nil {
		log.Warnf("unable to create a shadow store connection: %v", err)
		return nil, fmt.Errorf("shadowstore: connect: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&CellSample{}); err != nil {
		return nil, fmt.Errorf("shadowstore: migrate: %w", err)
	}

	log.Info("shadow sample store ready")
	return &Store{DB: db}, nil
}

// StartStorageEngine runs a buffered ingest loop that persists CellSample
// rows as they're produced, the same channel-fed goroutine shape the
// teacher's TimescaleDB backend uses for readings.
func (s *Store) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- CellSample {
	log.Info("starting shadow sample ingest loop...")
	sampleChan := make(chan CellSample, 64)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case sample := <-sampleChan:
				if err := s.store(ctx, sample); err != nil {
					log.Errorf("shadowstore: could not store sample: %v", err)
				}
			case <-ctx.Done():
				log.Info("shadowstore: cancellation received, stopping ingest loop")
				return
			}
		}
	}()
	return sampleChan
}

func (s *Store) store(ctx context.Context, sample CellSample) error {
	return s.DB.WithContext(ctx).Create(&sample).Error
}

// PersistRun writes every (timestamp, cell) sample of a completed run in
// one pass, for callers that already hold the full result in memory rather
// than streaming it through StartStorageEngine.
func (s *Store) PersistRun(ctx context.Context, result *pipeline.Result) error {
	rows := buildRows(result)
	if len(rows) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).CreateInBatches(rows, 500).Error
}

// cellMonthlyRollup is one month's aggregate for a single AOI cell, the
// per-cell slice of a MonthlyStats bucket, marshaled into CellSample's
// MonthlyRollup column.
type cellMonthlyRollup struct {
	Year                int     `json:"year"`
	Month               int     `json:"month"`
	TotalShadowHours    float64 `json:"total_shadow_hours"`
	AvgShadowPercentage float64 `json:"avg_shadow_percentage"`
	SolarEfficiencyPct  float64 `json:"solar_efficiency_pct"`
}

// buildRows flattens a run's (T, N_aoi) stack into one CellSample per
// (timestamp, cell), split out from PersistRun so it can be tested without
// a live database connection. Every row for a given cell carries that
// cell's full monthly rollup (one entry per month bucket in
// result.Monthly), matching spec.md §6.4's description of the column.
func buildRows(result *pipeline.Result) []CellSample {
	rows := make([]CellSample, 0, len(result.Timestamps)*len(result.AOICells))
	rollupByCell := make(map[int][]byte, len(result.AOICells))

	for ti, t := range result.Timestamps {
		for k, v := range result.Stack[ti] {
			rollup, ok := rollupByCell[k]
			if !ok {
				rollup = marshalCellRollup(result.Monthly, k)
				rollupByCell[k] = rollup
			}
			sample := CellSample{
				RunID:          result.RunID,
				Timestamp:      t,
				CellIndex:      k,
				ShadowFraction: v,
			}
			sample.MonthlyRollup.Set(rollup)
			rows = append(rows, sample)
		}
	}
	return rows
}

// marshalCellRollup extracts cell k's entry from every month bucket and
// marshals it to JSON, logging (rather than failing the run) on a marshal
// error since the rollup column is supplemental to the raw sample itself.
func marshalCellRollup(monthly []*stats.MonthlyStats, k int) []byte {
	entries := make([]cellMonthlyRollup, 0, len(monthly))
	for _, m := range monthly {
		if k >= len(m.TotalShadowHours) {
			continue
		}
		entries = append(entries, cellMonthlyRollup{
			Year:                m.Key.Year,
			Month:               int(m.Key.Month),
			TotalShadowHours:    m.TotalShadowHours[k],
			AvgShadowPercentage: m.AvgShadowPercentage[k],
			SolarEfficiencyPct:  m.SolarEfficiencyPct[k],
		})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		log.Errorf("shadowstore: could not marshal monthly rollup for cell %d: %v", k, err)
		return []byte("[]")
	}
	return b
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
