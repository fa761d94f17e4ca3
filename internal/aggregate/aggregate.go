// Package aggregate turns per-lead-hour QPF rasters into one JSON document
// per forecast run: zonal statistics over every burn-scar buffer, catalog
// population first, then active incidents.
package aggregate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"

	"github.com/wrh-stid/debrisflow-etl/internal/config"
	"github.com/wrh-stid/debrisflow-etl/internal/domain"
	"github.com/wrh-stid/debrisflow-etl/internal/observability"
	"github.com/wrh-stid/debrisflow-etl/internal/raster"
)

// ZonalFunc computes zonal statistics of the raster at path over zone.
type ZonalFunc func(path string, zone geom.Polygonal) (domain.Stats, error)

// Aggregator evaluates forecast runs over the fire populations and writes
// the per-run output documents.
type Aggregator struct {
	cfg     *config.Config
	zonal   ZonalFunc
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New builds an Aggregator backed by GDAL zonal statistics.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{cfg: cfg, zonal: raster.ZonalStats, logger: logger, metrics: metrics}
}

// Result reports what one aggregation pass produced.
type Result struct {
	Run      domain.RunTime
	Written  bool
	Document string
	Fires    int
}

// Run aggregates one forecast run. It gates on raster coverage, skips runs
// already complete (unless force is set), and writes the output document
// only when at least one fire produced statistics. A skipped run is not an
// error.
func (a *Aggregator) Run(run domain.RunTime, catalog, active []domain.FireRecord, force bool) (Result, error) {
	proceed, reason := a.shouldProcess(run, force)
	if !proceed {
		a.logger.Info("skipping run", "run", run, "reason", reason)
		return Result{}, nil
	}

	a.logger.Info("evaluating NBM one-hour precipitation", "run", run,
		"catalog_fires", len(catalog), "active_fires", len(active))

	var docs []domain.FireDocument
	for _, fire := range catalog {
		if doc, ok := a.aggregateFire(run, fire, a.cfg.ForecastHours); ok {
			docs = append(docs, doc)
		}
	}
	for _, fire := range active {
		if doc, ok := a.aggregateFire(run, fire, a.cfg.ActiveForecastHours); ok {
			docs = append(docs, doc)
		}
	}

	if len(docs) == 0 {
		a.logger.Info("nothing to save", "run", run)
		return Result{}, nil
	}
	path := run.DocumentPath(a.cfg.OutputDir)
	if err := writeDocument(path, docs); err != nil {
		return Result{}, err
	}
	a.logger.Info("saved run document", "run", run, "fires", len(docs))
	a.metrics.DocumentsWritten.Inc()
	a.metrics.RunsProcessed.Inc()
	return Result{Run: run, Written: true, Document: path, Fires: len(docs)}, nil
}

// aggregateFire walks the run's lead hours for one fire. Missing rasters
// leave gaps in the series; zonal failures drop the fire from this run.
func (a *Aggregator) aggregateFire(run domain.RunTime, fire domain.FireRecord, hours int) (domain.FireDocument, bool) {
	agg := domain.NewRunAggregate(fire, run)

	for lead := 1; lead <= hours; lead++ {
		path := run.RasterPath(a.cfg.GeoTIFFDir, lead)
		if _, err := os.Stat(path); err != nil {
			a.logger.Debug("raster not found", "path", path)
			continue
		}
		stats, err := a.zonal(path, fire.Zone)
		if err != nil {
			a.logger.Error("zonal statistics failed", "fire", fire.Name, "path", path, "error", err)
			a.metrics.FiresSkipped.WithLabelValues(string(fire.Population)).Inc()
			return domain.FireDocument{}, false
		}
		agg.Add(run.Valid(lead), stats)
	}

	if agg.Degenerate() {
		a.logger.Warn("found infinity, skipping fire", "fire", fire.Name)
		a.metrics.FiresSkipped.WithLabelValues(string(fire.Population)).Inc()
		return domain.FireDocument{}, false
	}
	if agg.Hours() == 0 {
		a.metrics.FiresSkipped.WithLabelValues(string(fire.Population)).Inc()
		return domain.FireDocument{}, false
	}

	doc := agg.Document()
	if fire.Population == domain.PopulationCatalog {
		if basin, ok := a.basinOverlay(fire, agg.PeakMax()); ok {
			doc.Perimeter = basin
		}
	}

	a.logger.Info("aggregated fire", "fire", fire.Name, "year", fire.Year, "hours", agg.Hours())
	a.metrics.FiresAggregated.WithLabelValues(string(fire.Population)).Inc()
	return doc, true
}

// basinOverlay returns the debris-flow probability-basin GeoJSON matching
// the fire and the severity category of the run's peak one-hour QPF, when
// one has been produced for that category.
func (a *Aggregator) basinOverlay(fire domain.FireRecord, peakMax float64) (string, bool) {
	name := fire.BaseName + "_basin_60min_" + domain.CategoryInches(peakMax) + "in_probs.geojson"
	if _, err := os.Stat(filepath.Join(a.cfg.GeoJSONDir, name)); err != nil {
		return "", false
	}
	return name, true
}

// shouldProcess decides whether a run has enough rasters to aggregate and
// whether its document is already up to date.
func (a *Aggregator) shouldProcess(run domain.RunTime, force bool) (bool, string) {
	count := a.rasterCount(run)
	required := float64(a.cfg.ForecastHours) * a.cfg.CoverageFraction
	if float64(count) < required {
		a.metrics.RunsSkipped.WithLabelValues("coverage").Inc()
		return false, fmt.Sprintf("insufficient NBM GeoTIFF files (%d/%d)", count, a.cfg.ForecastHours)
	}
	if force {
		return true, ""
	}

	recorded := recordedHours(run.DocumentPath(a.cfg.OutputDir))
	if recorded > 0 && (recorded >= count || !a.cfg.ReprocessStats) {
		a.metrics.RunsSkipped.WithLabelValues("complete").Inc()
		return false, "NBM QPF stats already complete"
	}
	return true, ""
}

// rasterCount counts the run's lead-hour rasters present on disk.
func (a *Aggregator) rasterCount(run domain.RunTime) int {
	count := 0
	for lead := 1; lead <= a.cfg.ForecastHours; lead++ {
		if _, err := os.Stat(run.RasterPath(a.cfg.GeoTIFFDir, lead)); err == nil {
			count++
		}
	}
	return count
}

// recordedHours reads an existing run document and reports how many lead
// hours its first fire covers. Zero when the document is absent or unreadable.
func recordedHours(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	var docs []domain.FireDocument
	if err := json.Unmarshal(data, &docs); err != nil || len(docs) == 0 {
		return 0
	}
	return len(docs[0].QPFValid)
}

func writeDocument(path string, docs []domain.FireDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(docs, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal run document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
