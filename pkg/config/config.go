// Package config loads the YAML run configuration for a shadow computation
// (spec.md §3 "Configuration"). Unlike the teacher's live, mutable
// ConfigProvider (devices/storage/controllers added and reloaded at
// runtime), a run's config is read once and lives for the duration of that
// run (spec.md §3 "Lifecycle").
package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// ShadowQuality controls how many subpixel rays edge refinement casts per
// boundary cell (spec.md §3, §4.6).
type ShadowQuality string

const (
	QualityFast       ShadowQuality = "fast"
	QualityNormal     ShadowQuality = "normal"
	QualityHigh       ShadowQuality = "high"
	QualityScientific ShadowQuality = "scientific"
)

// AOIConfig is the Area of Interest polygon, given either inline as a ring
// of world coordinates or as a path to a polygon file.
type AOIConfig struct {
	Path string      `yaml:"path,omitempty"`
	Ring [][2]float64 `yaml:"ring,omitempty"`
}

// RunConfig is the full set of options recognized for one run (spec.md §3).
type RunConfig struct {
	DTMPath      string        `yaml:"dtm_path"`
	DSMPath      string        `yaml:"dsm_path"`
	AOI          AOIConfig     `yaml:"aoi"`
	StartDate    string        `yaml:"start_date"`
	EndDate      string        `yaml:"end_date"`
	HourInterval float64       `yaml:"hour_interval"`
	BufferMeters float64       `yaml:"buffer_meters,omitempty"`
	AnglePrecision float64     `yaml:"angle_precision"`
	ShadowQuality  ShadowQuality `yaml:"shadow_quality"`
	CPUCores       int         `yaml:"cpu_cores,omitempty"`

	Output OutputConfig `yaml:"output,omitempty"`
	Progress ProgressConfig `yaml:"progress,omitempty"`
	RESTServer RESTServerConfig `yaml:"rest,omitempty"`
	History  HistoryConfig  `yaml:"history,omitempty"`
	ShadowStore ShadowStoreConfig `yaml:"shadowstore,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// OutputConfig controls where the exported multi-band raster is written.
type OutputConfig struct {
	RasterPath string `yaml:"raster_path,omitempty"`
}

// ProgressConfig configures the gnet-based progress broadcast server.
type ProgressConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// RESTServerConfig configures the query API server.
type RESTServerConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// HistoryConfig configures the local SQLite run ledger.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	DBPath  string `yaml:"db_path,omitempty"`
}

// ShadowStoreConfig configures the optional Postgres/Timescale sink.
type ShadowStoreConfig struct {
	Enabled          bool   `yaml:"enabled,omitempty"`
	ConnectionString string `yaml:"connection_string,omitempty"`
}

// LoggingConfig controls the rotating file sink and debug verbosity.
type LoggingConfig struct {
	Debug      bool   `yaml:"debug,omitempty"`
	FilePath   string `yaml:"file_path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// Load reads and parses a run configuration from filename.
func Load(filename string) (*RunConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *RunConfig) applyDefaults() {
	if c.HourInterval <= 0 {
		c.HourInterval = 1
	}
	if c.AnglePrecision <= 0 {
		c.AnglePrecision = 0.5
	}
	if c.ShadowQuality == "" {
		c.ShadowQuality = QualityNormal
	}
	if c.CPUCores <= 0 {
		c.CPUCores = 4
	}
}
