package domain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunStamp(t *testing.T) {
	run, err := ParseRunStamp("2020103006")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 10, 30, 6, 0, 0, 0, time.UTC), run.Time())
	assert.Equal(t, "2020103006", run.Stamp())

	_, err = ParseRunStamp("20201030")
	require.Error(t, err)
	_, err = ParseRunStamp("not-a-stamp")
	require.Error(t, err)
}

func TestRunTimePaths(t *testing.T) {
	run := NewRunTime(2020, time.October, 30, 6)

	assert.Equal(t, filepath.Join("tif", "20201030", "06"), run.RasterDir("tif"))

	// Directory keyed by init time, file named by valid time.
	assert.Equal(t,
		filepath.Join("tif", "20201030", "06", "nbm.qpf.2020103011.tif"),
		run.RasterPath("tif", 5))

	// Lead hours roll past midnight into the next date's valid stamp.
	assert.Equal(t,
		filepath.Join("tif", "20201030", "06", "nbm.qpf.2020103106.tif"),
		run.RasterPath("tif", 24))

	assert.Equal(t, filepath.Join("out", "nbm.2020103006.json"), run.DocumentPath("out"))
	assert.Equal(t, filepath.Join("nbm", "20201030", "06Z"), run.GribDir("nbm"))
	assert.Equal(t, "blend.t06z.core.f012.co.grib2", run.GribName(12))
}

func TestRunTimeFromTruncates(t *testing.T) {
	run := RunTimeFrom(time.Date(2020, 10, 30, 6, 42, 17, 0, time.UTC))
	assert.Equal(t, "2020103006", run.Stamp())
}
