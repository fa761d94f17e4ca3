// Package convert produces the per-lead-hour QPF GeoTIFFs from the raw NBM
// GRIB2 archive: band extraction, reprojection with a western-US cutout,
// and rescaling from millimeters to inches.
package convert

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wrh-stid/debrisflow-etl/internal/config"
	"github.com/wrh-stid/debrisflow-etl/internal/domain"
	"github.com/wrh-stid/debrisflow-etl/internal/observability"
	"github.com/wrh-stid/debrisflow-etl/internal/raster"
)

// qpfElement is the GRIB element of the one-hour precipitation band.
const qpfElement = "QPF01"

// mmToInches converts precipitation depth from millimeters to inches.
const mmToInches = 0.0393701

// cutout is the western-US extent kept after reprojection (xmin, ymin,
// xmax, ymax in EPSG:4326).
var cutout = [4]float64{-128, 25, -100, 55}

// rasterOps is the GDAL surface the converter needs; a seam for tests.
type rasterOps interface {
	FindBand(path, element string) (int, error)
	ExtractBand(src string, band int, dst string) error
	WarpToBounds(src, dst, dstSRS string, bounds [4]float64, boundsSRS string) error
	Warp(src, dst, dstSRS string) error
	Rescale(src, dst string, scale float64) error
}

// gdalOps delegates to the raster package.
type gdalOps struct{}

func (gdalOps) FindBand(path, element string) (int, error) { return raster.FindBand(path, element) }
func (gdalOps) ExtractBand(src string, band int, dst string) error {
	return raster.ExtractBand(src, band, dst)
}
func (gdalOps) WarpToBounds(src, dst, dstSRS string, bounds [4]float64, boundsSRS string) error {
	return raster.WarpToBounds(src, dst, dstSRS, bounds, boundsSRS)
}
func (gdalOps) Warp(src, dst, dstSRS string) error   { return raster.Warp(src, dst, dstSRS) }
func (gdalOps) Rescale(src, dst string, scale float64) error {
	return raster.Rescale(src, dst, scale)
}

// Converter turns raw NBM runs into the GeoTIFFs the aggregator reads.
type Converter struct {
	cfg     *config.Config
	ops     rasterOps
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New builds a Converter backed by GDAL.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Converter {
	return &Converter{cfg: cfg, ops: gdalOps{}, logger: logger, metrics: metrics}
}

// Run converts every lead hour of one NBM run. A lead hour whose raw grid
// is absent or fails conversion is logged and skipped; an absent run
// directory skips the whole run. Existing GeoTIFFs are kept unless
// REPROCESS_RASTERS is set.
func (c *Converter) Run(run domain.RunTime) error {
	gribDir := run.GribDir(c.cfg.ArchiveDir)
	if _, err := os.Stat(gribDir); err != nil {
		c.logger.Info("NBM GRIB2 data not available", "run", run, "dir", gribDir)
		return nil
	}

	if err := os.MkdirAll(run.RasterDir(c.cfg.GeoTIFFDir), 0o755); err != nil {
		return fmt.Errorf("create raster dir: %w", err)
	}

	c.logger.Info("converting NBM GRIB2 files to GeoTIFFs", "run", run)

	for lead := 1; lead <= c.cfg.ForecastHours; lead++ {
		final := run.RasterPath(c.cfg.GeoTIFFDir, lead)
		if _, err := os.Stat(final); err == nil && !c.cfg.ReprocessRasters {
			c.logger.Debug("GeoTIFF already exists", "lead", lead)
			continue
		}

		grib := filepath.Join(gribDir, run.GribName(lead))
		if _, err := os.Stat(grib); err != nil {
			c.logger.Info("GRIB2 file not available", "run", run, "lead", lead)
			c.metrics.RastersMissing.Inc()
			continue
		}

		if err := c.convertHour(grib, final); err != nil {
			c.logger.Error("conversion failed", "run", run, "lead", lead, "error", err)
			continue
		}
		c.logger.Debug("converted lead hour", "run", run, "lead", lead)
		c.metrics.RastersConverted.Inc()
	}
	return nil
}

// convertHour runs the four-stage chain for one lead hour: extract the QPF
// band, warp to geographic coordinates cutting the western-US extent, warp
// to web mercator, then rescale to inches. Intermediates are removed on the
// way out.
func (c *Converter) convertHour(grib, final string) error {
	band, err := c.ops.FindBand(grib, qpfElement)
	if err != nil {
		return err
	}

	tmp := intermediate(final, "tmp")
	proj := intermediate(final, "proj")
	proj2 := intermediate(final, "proj2")
	defer func() {
		for _, p := range []string{tmp, proj, proj2} {
			os.Remove(p)
		}
	}()

	if err := c.ops.ExtractBand(grib, band, tmp); err != nil {
		return err
	}
	if err := c.ops.WarpToBounds(tmp, proj, "EPSG:4326", cutout, "EPSG:4326"); err != nil {
		return err
	}
	if err := c.ops.Warp(proj, proj2, "EPSG:3857"); err != nil {
		return err
	}
	return c.ops.Rescale(proj2, final, mmToInches)
}

// intermediate derives a stage filename, e.g. nbm.qpf.<ts>.tmp.tif.
func intermediate(final, stage string) string {
	return strings.TrimSuffix(final, ".tif") + "." + stage + ".tif"
}
