// Package raster wraps GDAL (via godal) for the pipeline's raster needs:
// band discovery in raw GRIB2 grids, reprojection, unit rescaling, and
// reading pixel windows for zonal statistics. GDAL is the one external
// native dependency; everything here goes through typed calls instead of
// shelling out to the GDAL command-line utilities.
package raster

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/airbusgeo/godal"
)

// NoDataValue is the sentinel written into produced rasters and assumed by
// zonal statistics when a band declares none.
const NoDataValue = -9999.0

var registerOnce sync.Once

// Register initializes the GDAL driver registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// FindBand opens a raster and returns the 1-based index of the first band
// whose GRIB_ELEMENT metadata matches element, e.g. "QPF01".
func FindBand(path, element string) (int, error) {
	Register()
	ds, err := godal.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	for i, band := range ds.Bands() {
		if band.Metadata("GRIB_ELEMENT") == element {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("no %s band in %s", element, path)
}

// ExtractBand translates a single band of src into a standalone GeoTIFF.
func ExtractBand(src string, band int, dst string) error {
	Register()
	ds, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()

	out, err := ds.Translate(dst, []string{"-b", strconv.Itoa(band), "-of", "GTiff"})
	if err != nil {
		return fmt.Errorf("translate %s band %d: %w", src, band, err)
	}
	return out.Close()
}

// WarpToBounds reprojects src to dstSRS, cutting to an extent given in
// boundsSRS coordinates (xmin, ymin, xmax, ymax).
func WarpToBounds(src, dst, dstSRS string, bounds [4]float64, boundsSRS string) error {
	Register()
	ds, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()

	switches := []string{
		"-t_srs", dstSRS,
		"-te", f2s(bounds[0]), f2s(bounds[1]), f2s(bounds[2]), f2s(bounds[3]),
		"-te_srs", boundsSRS,
		"-overwrite",
	}
	out, err := ds.Warp(dst, switches)
	if err != nil {
		return fmt.Errorf("warp %s to %s: %w", src, dstSRS, err)
	}
	return out.Close()
}

// Warp reprojects src to dstSRS without changing its extent.
func Warp(src, dst, dstSRS string) error {
	Register()
	ds, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()

	out, err := ds.Warp(dst, []string{"-t_srs", dstSRS, "-overwrite"})
	if err != nil {
		return fmt.Errorf("warp %s to %s: %w", src, dstSRS, err)
	}
	return out.Close()
}

// Rescale multiplies the single band of src by scale, rounds to two
// decimals, and writes dst as a Float32 GeoTIFF with NoDataValue set.
// Source nodata cells stay nodata in the output.
func Rescale(src, dst string, scale float64) error {
	Register()
	ds, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()

	st := ds.Structure()
	if st.NBands < 1 {
		return fmt.Errorf("rescale %s: no bands", src)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return fmt.Errorf("geotransform of %s: %w", src, err)
	}

	band := ds.Bands()[0]
	srcNoData, hasNoData := band.NoData()

	buf := make([]float64, st.SizeX*st.SizeY)
	if err := band.Read(0, 0, buf, st.SizeX, st.SizeY); err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	out := make([]float32, len(buf))
	for i, v := range buf {
		if (hasNoData && v == srcNoData) || math.IsNaN(v) {
			out[i] = NoDataValue
			continue
		}
		out[i] = float32(math.Round(v*scale*100) / 100)
	}

	dstDS, err := godal.Create(godal.GTiff, dst, 1, godal.Float32, st.SizeX, st.SizeY)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if err := dstDS.SetGeoTransform(gt); err != nil {
		dstDS.Close()
		return fmt.Errorf("set geotransform on %s: %w", dst, err)
	}
	if sr := ds.SpatialRef(); sr != nil {
		if err := dstDS.SetSpatialRef(sr); err != nil {
			dstDS.Close()
			return fmt.Errorf("set spatial ref on %s: %w", dst, err)
		}
	}
	dstBand := dstDS.Bands()[0]
	if err := dstBand.SetNoData(NoDataValue); err != nil {
		dstDS.Close()
		return fmt.Errorf("set nodata on %s: %w", dst, err)
	}
	if err := dstBand.Write(0, 0, out, st.SizeX, st.SizeY); err != nil {
		dstDS.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return dstDS.Close()
}

func f2s(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
