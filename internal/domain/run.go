package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

// stampLayout is the YYYYMMDDHH timestamp used in raster and document names.
const stampLayout = "2006010215"

// RunTime identifies one NBM initialization cycle (hour resolution, UTC).
type RunTime struct {
	t time.Time
}

// NewRunTime builds a RunTime from its calendar components.
func NewRunTime(year int, month time.Month, day, hour int) RunTime {
	return RunTime{t: time.Date(year, month, day, hour, 0, 0, 0, time.UTC)}
}

// RunTimeFrom truncates an arbitrary time to the containing UTC hour.
func RunTimeFrom(t time.Time) RunTime {
	return RunTime{t: t.UTC().Truncate(time.Hour)}
}

// ParseRunStamp parses a YYYYMMDDHH timestamp string.
func ParseRunStamp(s string) (RunTime, error) {
	t, err := time.Parse(stampLayout, s)
	if err != nil {
		return RunTime{}, fmt.Errorf("parse run stamp %q: %w", s, err)
	}
	return RunTime{t: t}, nil
}

// Time returns the initialization time in UTC.
func (r RunTime) Time() time.Time { return r.t }

// IsZero reports whether r is the zero RunTime.
func (r RunTime) IsZero() bool { return r.t.IsZero() }

// Stamp formats the initialization time as YYYYMMDDHH.
func (r RunTime) Stamp() string { return r.t.Format(stampLayout) }

// String implements fmt.Stringer for log fields.
func (r RunTime) String() string { return r.t.Format("2006-01-02 15Z") }

// Add offsets the run time by a number of hours.
func (r RunTime) Add(hours int) RunTime {
	return RunTime{t: r.t.Add(time.Duration(hours) * time.Hour)}
}

// Valid returns the forecast valid time for a lead hour of this run.
func (r RunTime) Valid(lead int) RunTime { return r.Add(lead) }

// Before reports whether r is earlier than other.
func (r RunTime) Before(other RunTime) bool { return r.t.Before(other.t) }

// RasterDir returns the per-run raster directory <root>/<YYYYMMDD>/<HH>.
func (r RunTime) RasterDir(root string) string {
	return filepath.Join(root, r.t.Format("20060102"), r.t.Format("15"))
}

// RasterPath returns the path of the lead-hour raster for this run. The
// directory is keyed by the initialization time, the filename by the valid time.
func (r RunTime) RasterPath(root string, lead int) string {
	return filepath.Join(r.RasterDir(root), "nbm.qpf."+r.Valid(lead).Stamp()+".tif")
}

// DocumentPath returns the path of the run's aggregated output document.
func (r RunTime) DocumentPath(root string) string {
	return filepath.Join(root, "nbm."+r.Stamp()+".json")
}

// GribDir returns the raw archive directory <root>/<YYYYMMDD>/<HH>Z.
func (r RunTime) GribDir(root string) string {
	return filepath.Join(root, r.t.Format("20060102"), r.t.Format("15")+"Z")
}

// GribName returns the raw NBM core file name for a lead hour,
// e.g. blend.t06z.core.f012.co.grib2.
func (r RunTime) GribName(lead int) string {
	return fmt.Sprintf("blend.t%02dz.core.f%03d.co.grib2", r.t.Hour(), lead)
}
