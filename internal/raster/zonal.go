package raster

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/ctessum/geom"

	"github.com/wrh-stid/debrisflow-etl/internal/domain"
)

// Grid is a raster window with its georeferencing, ready for zonal math.
// Values are row-major, north-up; GT is the GDAL geotransform of the window.
type Grid struct {
	Values []float64
	Width  int
	Height int
	GT     [6]float64
	NoData float64
}

// cellCenter returns the geographic coordinates of a pixel center.
func (g Grid) cellCenter(col, row int) geom.Point {
	fc, fr := float64(col)+0.5, float64(row)+0.5
	return geom.Point{
		X: g.GT[0] + fc*g.GT[1] + fr*g.GT[2],
		Y: g.GT[3] + fc*g.GT[4] + fr*g.GT[5],
	}
}

// Stats computes max, mean, range, and sum over the cells whose centers fall
// inside zone, masking nodata. The second return is false when no cell
// contributed, the degenerate case the caller records as all zeros.
func (g Grid) Stats(zone geom.Polygonal) (domain.Stats, bool) {
	var (
		count    int
		min, max float64
		sum      float64
	)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := g.Values[row*g.Width+col]
			if v == g.NoData || math.IsNaN(v) {
				continue
			}
			if g.cellCenter(col, row).Within(zone) == geom.Outside {
				continue
			}
			if count == 0 || v < min {
				min = v
			}
			if count == 0 || v > max {
				max = v
			}
			sum += v
			count++
		}
	}
	if count == 0 {
		return domain.Stats{}, false
	}
	return domain.Stats{
		Max:   max,
		Mean:  sum / float64(count),
		Range: max - min,
		Sum:   sum,
	}, true
}

// ZonalStats opens the raster at path, reads the pixel window covering
// zone's bounds, and computes the zonal statistics. A zone entirely outside
// the raster yields zero statistics, mirroring an empty overlap.
func ZonalStats(path string, zone geom.Polygonal) (domain.Stats, error) {
	grid, ok, err := readZone(path, zone)
	if err != nil {
		return domain.Stats{}, err
	}
	if !ok {
		return domain.Stats{}, nil
	}
	stats, _ := grid.Stats(zone)
	return stats, nil
}

// readZone reads the rectangle of pixels covering zone's bounding box.
// The boolean is false when the box does not intersect the raster extent.
func readZone(path string, zone geom.Polygonal) (Grid, bool, error) {
	Register()
	ds, err := godal.Open(path)
	if err != nil {
		return Grid{}, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	if st.NBands < 1 {
		return Grid{}, false, fmt.Errorf("%s: no bands", path)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return Grid{}, false, fmt.Errorf("geotransform of %s: %w", path, err)
	}
	if gt[2] != 0 || gt[4] != 0 {
		return Grid{}, false, fmt.Errorf("%s: rotated rasters are not supported", path)
	}

	b := zone.Bounds()
	// Column/row span of the bounding box, clipped to the raster extent.
	col0 := clampInt(int(math.Floor((b.Min.X-gt[0])/gt[1])), 0, st.SizeX)
	col1 := clampInt(int(math.Ceil((b.Max.X-gt[0])/gt[1])), 0, st.SizeX)
	// gt[5] is negative for north-up rasters, so Max.Y maps to the first row.
	row0 := clampInt(int(math.Floor((b.Max.Y-gt[3])/gt[5])), 0, st.SizeY)
	row1 := clampInt(int(math.Ceil((b.Min.Y-gt[3])/gt[5])), 0, st.SizeY)
	if col1 <= col0 || row1 <= row0 {
		return Grid{}, false, nil
	}

	width, height := col1-col0, row1-row0
	band := ds.Bands()[0]
	buf := make([]float64, width*height)
	if err := band.Read(col0, row0, buf, width, height); err != nil {
		return Grid{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	nodata, ok := band.NoData()
	if !ok {
		nodata = NoDataValue
	}

	windowGT := gt
	windowGT[0] = gt[0] + float64(col0)*gt[1]
	windowGT[3] = gt[3] + float64(row0)*gt[5]

	return Grid{Values: buf, Width: width, Height: height, GT: windowGT, NoData: nodata}, true, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
