package domain

import "github.com/ctessum/geom"

// Population distinguishes the two fire record schemas.
type Population string

const (
	PopulationCatalog Population = "catalog"
	PopulationActive  Population = "active"
)

// FireRecord is the unified burn-scar record both property schemas adapt
// into. Perimeter and Buffer are the GeoJSON references published to the web
// client; Zone is the buffer polygon geometry used as the statistics zone,
// in the raster's geographic coordinates (EPSG:4326).
type FireRecord struct {
	Name       string
	Year       string
	State      string
	Perimeter  string
	Buffer     string
	Lat        float64
	Lon        float64
	Zone       geom.Polygonal
	BaseName   string // leading tokens of the buffer file name, keys basin lookups
	Population Population
}
