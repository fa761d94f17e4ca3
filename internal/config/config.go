package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	// Input/output directories.
	ArchiveDir string // raw NBM GRIB2 archive (read-only), <dir>/<YYYYMMDD>/<HH>Z/
	GeoTIFFDir string // per-lead-hour rasters, <dir>/<YYYYMMDD>/<HH>/nbm.qpf.<ts>.tif
	OutputDir  string // aggregated JSON documents, nbm.<ts>.json
	ImagesDir  string // web image output; used for run discovery

	// Burn-scar polygon datasets. The GeoJSON directories carry descriptive
	// properties parallel to the shapefiles in the buffer/perimeter dirs.
	BufferDir          string
	PerimeterDir       string
	GeoJSONDir         string // catalog properties + probability-basin geojson
	ActiveBufferDir    string
	ActivePerimeterDir string
	ActiveGeoJSONDir   string

	// Aggregation behavior.
	ForecastHours       int     // lead hours per run for the catalog population
	ActiveForecastHours int     // lead hours for the active population
	CoverageFraction    float64 // minimum fraction of rasters required to aggregate
	ReprocessStats      bool    // re-aggregate when more rasters have arrived
	ReprocessRasters    bool    // rebuild rasters that already exist

	// Retention.
	KeepHours  int // output documents younger than this are kept
	PurgeHours int // outer bound of the sweep window

	// Run selection.
	LookbackRuns int // runs processed per explicit-timestamp invocation
	DiscoverRuns int // most-recent runs processed when discovering

	// Publishing.
	RsyncPath      string
	PublishDests   []string // rsync destinations, e.g. user@host:/path/
	PublishTimeout time.Duration

	// Observability.
	LogLevel       string
	LogFormat      string
	PushgatewayURL string
	MetricsJob     string

	// Run-completion notifications (enabled when brokers are set).
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	forecastHours, err := envInt("FORECAST_HOURS", 36)
	if err != nil {
		return nil, err
	}
	activeHours, err := envInt("ACTIVE_FORECAST_HOURS", forecastHours)
	if err != nil {
		return nil, err
	}
	keepHours, err := envInt("KEEP_HOURS", 36)
	if err != nil {
		return nil, err
	}
	purgeHours, err := envInt("PURGE_HOURS", 168)
	if err != nil {
		return nil, err
	}
	lookback, err := envInt("LOOKBACK_RUNS", 6)
	if err != nil {
		return nil, err
	}
	discover, err := envInt("DISCOVER_RUNS", 7)
	if err != nil {
		return nil, err
	}
	coverage, err := envFloat("COVERAGE_FRACTION", 0.75)
	if err != nil {
		return nil, err
	}
	publishTimeout, err := envDuration("PUBLISH_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	dataDir := envOrDefault("DATA_DIR", "data")

	cfg := &Config{
		ArchiveDir: envOrDefault("NBM_ARCHIVE_DIR", "/nas/stid/data/nbm"),
		GeoTIFFDir: envOrDefault("GEOTIFF_DIR", dataDir+"/nbm/geotiff"),
		OutputDir:  envOrDefault("OUTPUT_DIR", dataDir+"/nbm/json"),
		ImagesDir:  envOrDefault("IMAGES_DIR", dataDir+"/nbm/images"),

		BufferDir:          envOrDefault("BUFFER_DIR", dataDir+"/buffer"),
		PerimeterDir:       envOrDefault("PERIMETER_DIR", dataDir+"/perimeter"),
		GeoJSONDir:         envOrDefault("GEOJSON_DIR", dataDir+"/qpf_threshold_geojson"),
		ActiveBufferDir:    envOrDefault("ACTIVE_BUFFER_DIR", dataDir+"/buffer_active"),
		ActivePerimeterDir: envOrDefault("ACTIVE_PERIMETER_DIR", dataDir+"/perimeter_active"),
		ActiveGeoJSONDir:   envOrDefault("ACTIVE_GEOJSON_DIR", dataDir+"/json_active"),

		ForecastHours:       forecastHours,
		ActiveForecastHours: activeHours,
		CoverageFraction:    coverage,
		ReprocessStats:      envBool("REPROCESS_STATS", true),
		ReprocessRasters:    envBool("REPROCESS_RASTERS", false),

		KeepHours:  keepHours,
		PurgeHours: purgeHours,

		LookbackRuns: lookback,
		DiscoverRuns: discover,

		RsyncPath:      envOrDefault("RSYNC_PATH", "/usr/bin/rsync"),
		PublishDests:   splitList(os.Getenv("PUBLISH_DESTS")),
		PublishTimeout: publishTimeout,

		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("LOG_FORMAT", "text"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		MetricsJob:     envOrDefault("METRICS_JOB", "debrisflow-etl"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "debrisflow-run-complete"),
	}

	if cfg.ForecastHours <= 0 {
		return nil, errors.New("FORECAST_HOURS must be positive")
	}
	if cfg.ActiveForecastHours <= 0 {
		return nil, errors.New("ACTIVE_FORECAST_HOURS must be positive")
	}
	if cfg.CoverageFraction <= 0 || cfg.CoverageFraction > 1 {
		return nil, errors.New("COVERAGE_FRACTION must be in (0, 1]")
	}
	if cfg.KeepHours >= cfg.PurgeHours {
		return nil, errors.New("KEEP_HOURS must be smaller than PURGE_HOURS")
	}

	return cfg, nil
}

// NotifyEnabled reports whether run-completion notifications are configured.
func (c *Config) NotifyEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
