package raster

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square returns a polygon covering [x0,x1]x[y0,y1].
func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}}
}

// grid4x4 builds a 4x4 north-up grid over [0,4]x[0,4] with 1-degree cells.
// Row 0 is the northernmost row (y from 4 down to 3).
func grid4x4(values []float64) Grid {
	return Grid{
		Values: values,
		Width:  4,
		Height: 4,
		GT:     [6]float64{0, 1, 0, 4, 0, -1},
		NoData: NoDataValue,
	}
}

func TestGridCellCenter(t *testing.T) {
	g := grid4x4(make([]float64, 16))
	assert.Equal(t, geom.Point{X: 0.5, Y: 3.5}, g.cellCenter(0, 0))
	assert.Equal(t, geom.Point{X: 3.5, Y: 0.5}, g.cellCenter(3, 3))
}

func TestGridStats(t *testing.T) {
	t.Run("full coverage", func(t *testing.T) {
		values := make([]float64, 16)
		for i := range values {
			values[i] = float64(i + 1) // 1..16
		}
		stats, ok := grid4x4(values).Stats(square(0, 0, 4, 4))

		require.True(t, ok)
		assert.Equal(t, 16.0, stats.Max)
		assert.Equal(t, 8.5, stats.Mean)
		assert.Equal(t, 15.0, stats.Range)
		assert.Equal(t, 136.0, stats.Sum)
	})

	t.Run("partial zone", func(t *testing.T) {
		values := make([]float64, 16)
		values[0] = 2.5  // center (0.5, 3.5), inside
		values[5] = 1.5  // center (1.5, 2.5), inside
		values[15] = 9.0 // center (3.5, 0.5), outside
		stats, ok := grid4x4(values).Stats(square(0, 2, 2, 4))

		require.True(t, ok)
		assert.Equal(t, 2.5, stats.Max)
		assert.Equal(t, 4.0, stats.Sum) // only the two covered cells
		assert.Equal(t, 2.5, stats.Range)
		assert.Equal(t, 1.0, stats.Mean)
	})

	t.Run("nodata masked", func(t *testing.T) {
		values := []float64{
			NoDataValue, NoDataValue, NoDataValue, NoDataValue,
			NoDataValue, 0.4, NoDataValue, NoDataValue,
			NoDataValue, NoDataValue, NoDataValue, NoDataValue,
			NoDataValue, NoDataValue, NoDataValue, NoDataValue,
		}
		stats, ok := grid4x4(values).Stats(square(0, 0, 4, 4))

		require.True(t, ok)
		assert.Equal(t, 0.4, stats.Max)
		assert.Equal(t, 0.4, stats.Mean)
		assert.Equal(t, 0.0, stats.Range)
		assert.Equal(t, 0.4, stats.Sum)
	})

	t.Run("zone misses every cell center", func(t *testing.T) {
		values := make([]float64, 16)
		_, ok := grid4x4(values).Stats(square(0.8, 0.8, 0.9, 0.9))
		assert.False(t, ok)
	})

	t.Run("all nodata", func(t *testing.T) {
		values := make([]float64, 16)
		for i := range values {
			values[i] = NoDataValue
		}
		_, ok := grid4x4(values).Stats(square(0, 0, 4, 4))
		assert.False(t, ok)
	})
}
