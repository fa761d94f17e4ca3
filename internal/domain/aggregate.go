package domain

import (
	"math"
	"strconv"
)

// Stats holds the four zonal statistics of one raster over one polygon.
type Stats struct {
	Max   float64
	Mean  float64
	Range float64
	Sum   float64
}

// Clamped returns s with every negative statistic raised to zero. Negative
// values only arise from nodata leakage and never contribute to aggregation.
func (s Stats) Clamped() Stats {
	return Stats{
		Max:   clampZero(s.Max),
		Mean:  clampZero(s.Mean),
		Range: clampZero(s.Range),
		Sum:   clampZero(s.Sum),
	}
}

func clampZero(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

// Peak pairs a running-peak value with the valid time it first occurred at.
type Peak struct {
	Valid string `json:"valid"`
	Value string `json:"value"`
}

// FireDocument is one element of a run's output document.
type FireDocument struct {
	Year        string     `json:"year"`
	State       string     `json:"state"`
	Name        string     `json:"name"`
	Perimeter   string     `json:"perimeter"`
	Buffer      string     `json:"buffer"`
	Coordinates [2]float64 `json:"coordinates"` // [lat, lon]
	QPFMax      []float64  `json:"qpf_max"`
	QPFMean     []float64  `json:"qpf_mean"`
	QPFRange    []float64  `json:"qpf_range"`
	QPFSum      []float64  `json:"qpf_sum"`
	QPFValid    []string   `json:"qpf_valid"`
	RunQPFMax   Peak       `json:"run_qpf_max"`
	RunQPFMean  Peak       `json:"run_qpf_mean"`
	RunQPFRange Peak       `json:"run_qpf_range"`
	RunQPFSum   Peak       `json:"run_qpf_sum"`
}

// peakTracker keeps a running maximum and its earliest valid time. Only a
// strict increase moves the valid time, so ties keep the first occurrence.
type peakTracker struct {
	value float64
	valid string
}

func (p *peakTracker) update(v float64, valid string) {
	if v > p.value {
		p.value = v
		p.valid = valid
	}
}

// RunAggregate accumulates per-lead-hour zonal statistics for one fire
// across a forecast run.
type RunAggregate struct {
	Fire FireRecord

	maxes  []float64
	means  []float64
	ranges []float64
	sums   []float64
	valids []string

	peakMax   peakTracker
	peakMean  peakTracker
	peakRange peakTracker
	peakSum   peakTracker
}

// NewRunAggregate starts an aggregate for a fire. Peaks initialize to zero at
// the run's first forecast valid time, whether or not that raster exists.
func NewRunAggregate(fire FireRecord, run RunTime) *RunAggregate {
	first := run.Valid(1).Stamp()
	return &RunAggregate{
		Fire:      fire,
		peakMax:   peakTracker{valid: first},
		peakMean:  peakTracker{valid: first},
		peakRange: peakTracker{valid: first},
		peakSum:   peakTracker{valid: first},
	}
}

// Add records one lead hour's statistics. The caller only invokes Add for
// hours whose raster exists; absent hours leave no entry in any series.
func (a *RunAggregate) Add(valid RunTime, s Stats) {
	s = s.Clamped()
	stamp := valid.Stamp()

	a.maxes = append(a.maxes, s.Max)
	a.means = append(a.means, s.Mean)
	a.ranges = append(a.ranges, s.Range)
	a.sums = append(a.sums, s.Sum)
	a.valids = append(a.valids, stamp)

	a.peakMax.update(s.Max, stamp)
	a.peakMean.update(s.Mean, stamp)
	a.peakRange.update(s.Range, stamp)
	a.peakSum.update(s.Sum, stamp)
}

// Hours returns the number of lead hours recorded so far.
func (a *RunAggregate) Hours() int { return len(a.valids) }

// PeakMax returns the running maximum of the per-hour max series, in the
// raster's depth units (inches).
func (a *RunAggregate) PeakMax() float64 { return a.peakMax.value }

// Degenerate reports whether any per-hour mean is positive infinity, the
// known zonal-statistics failure mode that invalidates the whole aggregate.
func (a *RunAggregate) Degenerate() bool {
	for _, m := range a.means {
		if math.IsInf(m, 1) {
			return true
		}
	}
	return false
}

// Document renders the aggregate into its output form, rounding the series
// to two decimals and formatting peak values as two-decimal strings.
func (a *RunAggregate) Document() FireDocument {
	return FireDocument{
		Year:        a.Fire.Year,
		State:       a.Fire.State,
		Name:        a.Fire.Name,
		Perimeter:   a.Fire.Perimeter,
		Buffer:      a.Fire.Buffer,
		Coordinates: [2]float64{a.Fire.Lat, a.Fire.Lon},
		QPFMax:      round2Slice(a.maxes),
		QPFMean:     round2Slice(a.means),
		QPFRange:    round2Slice(a.ranges),
		QPFSum:      round2Slice(a.sums),
		QPFValid:    append([]string(nil), a.valids...),
		RunQPFMax:   a.peakMax.peak(),
		RunQPFMean:  a.peakMean.peak(),
		RunQPFRange: a.peakRange.peak(),
		RunQPFSum:   a.peakSum.peak(),
	}
}

func (p *peakTracker) peak() Peak {
	return Peak{Valid: p.valid, Value: strconv.FormatFloat(p.value, 'f', 2, 64)}
}

func round2Slice(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = round2(v)
	}
	return out
}

func round2(v float64) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*100) / 100
}
