package convert

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrh-stid/debrisflow-etl/internal/config"
	"github.com/wrh-stid/debrisflow-etl/internal/domain"
	"github.com/wrh-stid/debrisflow-etl/internal/observability"
)

// fakeOps records the conversion chain and writes marker files so the
// converter's existence checks behave as they would with real GDAL output.
type fakeOps struct {
	calls    []string
	findErr  error
	warpErr  error
	rescaled []string
}

func (f *fakeOps) FindBand(path, element string) (int, error) {
	f.calls = append(f.calls, "find:"+element)
	if f.findErr != nil {
		return 0, f.findErr
	}
	return 4, nil
}

func (f *fakeOps) ExtractBand(src string, band int, dst string) error {
	f.calls = append(f.calls, "extract")
	return os.WriteFile(dst, []byte{}, 0o644)
}

func (f *fakeOps) WarpToBounds(src, dst, dstSRS string, bounds [4]float64, boundsSRS string) error {
	f.calls = append(f.calls, "warp:"+dstSRS)
	if f.warpErr != nil {
		return f.warpErr
	}
	return os.WriteFile(dst, []byte{}, 0o644)
}

func (f *fakeOps) Warp(src, dst, dstSRS string) error {
	f.calls = append(f.calls, "warp:"+dstSRS)
	return os.WriteFile(dst, []byte{}, 0o644)
}

func (f *fakeOps) Rescale(src, dst string, scale float64) error {
	f.calls = append(f.calls, "rescale")
	f.rescaled = append(f.rescaled, dst)
	return os.WriteFile(dst, []byte{}, 0o644)
}

func testConverter(t *testing.T, hours int) (*Converter, *fakeOps, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		ArchiveDir:    t.TempDir(),
		GeoTIFFDir:    t.TempDir(),
		ForecastHours: hours,
	}
	ops := &fakeOps{}
	c := &Converter{
		cfg:     cfg,
		ops:     ops,
		logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		metrics: observability.NewMetricsForTesting(),
	}
	return c, ops, cfg
}

func touchGrib(t *testing.T, cfg *config.Config, run domain.RunTime, leads ...int) {
	t.Helper()
	dir := run.GribDir(cfg.ArchiveDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, lead := range leads {
		require.NoError(t, os.WriteFile(filepath.Join(dir, run.GribName(lead)), []byte{}, 0o644))
	}
}

func TestRun_ConvertsAvailableHours(t *testing.T) {
	c, ops, cfg := testConverter(t, 3)
	run := domain.NewRunTime(2020, time.October, 30, 6)
	touchGrib(t, cfg, run, 1, 3) // hour 2 missing

	require.NoError(t, c.Run(run))

	assert.Equal(t, []string{
		"find:QPF01", "extract", "warp:EPSG:4326", "warp:EPSG:3857", "rescale",
		"find:QPF01", "extract", "warp:EPSG:4326", "warp:EPSG:3857", "rescale",
	}, ops.calls)
	assert.Equal(t, []string{
		run.RasterPath(cfg.GeoTIFFDir, 1),
		run.RasterPath(cfg.GeoTIFFDir, 3),
	}, ops.rescaled)
}

func TestRun_RemovesIntermediates(t *testing.T) {
	c, _, cfg := testConverter(t, 1)
	run := domain.NewRunTime(2020, time.October, 30, 6)
	touchGrib(t, cfg, run, 1)

	require.NoError(t, c.Run(run))

	final := run.RasterPath(cfg.GeoTIFFDir, 1)
	assert.FileExists(t, final)
	for _, stage := range []string{"tmp", "proj", "proj2"} {
		assert.NoFileExists(t, intermediate(final, stage))
	}
}

func TestRun_SkipsExistingGeoTIFF(t *testing.T) {
	c, ops, cfg := testConverter(t, 1)
	run := domain.NewRunTime(2020, time.October, 30, 6)
	touchGrib(t, cfg, run, 1)

	require.NoError(t, os.MkdirAll(run.RasterDir(cfg.GeoTIFFDir), 0o755))
	require.NoError(t, os.WriteFile(run.RasterPath(cfg.GeoTIFFDir, 1), []byte{}, 0o644))

	require.NoError(t, c.Run(run))
	assert.Empty(t, ops.calls)
}

func TestRun_ReprocessRebuildsExisting(t *testing.T) {
	c, ops, cfg := testConverter(t, 1)
	cfg.ReprocessRasters = true
	run := domain.NewRunTime(2020, time.October, 30, 6)
	touchGrib(t, cfg, run, 1)

	require.NoError(t, os.MkdirAll(run.RasterDir(cfg.GeoTIFFDir), 0o755))
	require.NoError(t, os.WriteFile(run.RasterPath(cfg.GeoTIFFDir, 1), []byte{}, 0o644))

	require.NoError(t, c.Run(run))
	assert.Contains(t, ops.calls, "rescale")
}

func TestRun_MissingArchiveDirSkipsRun(t *testing.T) {
	c, ops, _ := testConverter(t, 3)
	run := domain.NewRunTime(2020, time.October, 30, 6)

	require.NoError(t, c.Run(run))
	assert.Empty(t, ops.calls)
}

func TestRun_HourFailureDoesNotStopRun(t *testing.T) {
	c, ops, cfg := testConverter(t, 2)
	ops.findErr = errors.New("no QPF01 band")
	run := domain.NewRunTime(2020, time.October, 30, 6)
	touchGrib(t, cfg, run, 1, 2)

	require.NoError(t, c.Run(run))
	assert.Equal(t, []string{"find:QPF01", "find:QPF01"}, ops.calls)
	assert.NoFileExists(t, run.RasterPath(cfg.GeoTIFFDir, 1))
}
