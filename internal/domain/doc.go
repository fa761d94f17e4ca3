// Package domain models National Blend of Models (NBM) precipitation
// forecasts aggregated over wildfire burn scars for debris-flow monitoring.
//
// # Data Source
//
// The National Blend of Models publishes a gridded forecast cycle ("run")
// every hour. Each run is identified by its initialization hour in UTC and
// carries forecast lead hours 1 through 36. The raw GRIB2 grids live in an
// operational archive laid out as <archive>/<YYYYMMDD>/<HH>Z/; the converter
// extracts the one-hour quantitative precipitation forecast (QPF01) band and
// produces one GeoTIFF per lead hour, named by the forecast valid time:
//
//	nbm.qpf.<YYYYMMDDHH>.tif
//
// stored under <geotiff>/<YYYYMMDD>/<HH>/ keyed by the *initialization* time.
// Rasters are single-band depth-in-inches grids with nodata sentinel -9999.
//
// # Burn Scars
//
// Statistics zones are fixed-radius buffer polygons ("10mi_buffer") around
// wildfire perimeters. Two populations exist:
//
//   - catalog fires: confirmed historical incidents, GeoJSON properties
//     Year, State, Name, Center_Lat, Center_Lon;
//   - active fires: current incidents, properties CreateDate (YYYY/MM/DD),
//     UnitID (state in the last two letters), IncidentNa. Their geometry
//     references are published under an "active/" namespace.
//
// Both populations feed one FireRecord schema; see the fires package for the
// two property adapters.
//
// # Severity Categories
//
// Peak precipitation depth maps onto a two-digit category "00".."10" used to
// key pre-computed debris-flow probability basin files. The ladder steps by
// 2.54 mm (0.1 in): a depth at or above the i-th threshold classifies as at
// least category i, so classification is monotonic in depth and "00" means
// below the lowest threshold.
//
// # Run Aggregates
//
// For each fire and run, the aggregator collects per-lead-hour zonal
// max/mean/range/sum series plus four running peaks, each paired with the
// valid time at which the peak first occurred (strict increase only, so ties
// keep the earliest hour). Negative statistics are clamped to zero before
// aggregation; a positive-infinity mean anywhere in the series marks the
// whole aggregate as degenerate and excludes the fire from the output
// document.
package domain
