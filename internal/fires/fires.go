// Package fires loads the burn-scar datasets: buffer-zone shapefiles paired
// with GeoJSON files carrying descriptive properties. The catalog and active
// populations use different property schemas; each gets an adapter that
// fills the shared domain.FireRecord.
package fires

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wrh-stid/debrisflow-etl/internal/domain"
)

const bufferTag = "10mi_buffer"

// rasterProj is the geographic reference of the produced rasters; buffer
// geometries are transformed into it before zonal statistics.
const rasterProj = "+proj=longlat +datum=WGS84 +no_defs"

var titleCaser = cases.Title(language.English)

// Source loads one population of fire records.
type Source struct {
	bufferDir  string
	geoJSONDir string
	population domain.Population
	logger     *slog.Logger
}

// NewCatalogSource loads confirmed historical incidents.
func NewCatalogSource(bufferDir, geoJSONDir string, logger *slog.Logger) *Source {
	return &Source{bufferDir: bufferDir, geoJSONDir: geoJSONDir, population: domain.PopulationCatalog, logger: logger}
}

// NewActiveSource loads current incidents. Their published geometry
// references live under the "active/" namespace.
func NewActiveSource(bufferDir, geoJSONDir string, logger *slog.Logger) *Source {
	return &Source{bufferDir: bufferDir, geoJSONDir: geoJSONDir, population: domain.PopulationActive, logger: logger}
}

// Load walks the buffer directory for shapefiles and adapts each into a
// FireRecord. A fire whose metadata or geometry cannot be read is logged and
// skipped; the rest of the population still loads.
func (s *Source) Load() ([]domain.FireRecord, error) {
	if _, err := os.Stat(s.bufferDir); err != nil {
		s.logger.Info("no buffer directory", "population", s.population, "dir", s.bufferDir)
		return nil, nil
	}

	var records []domain.FireRecord
	err := filepath.WalkDir(s.bufferDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".shp") {
			return nil
		}
		rec, err := s.load(path, d.Name())
		if err != nil {
			s.logger.Error("skipping fire", "population", s.population, "file", d.Name(), "error", err)
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.bufferDir, err)
	}
	return records, nil
}

func (s *Source) load(shpPath, name string) (domain.FireRecord, error) {
	rec, err := s.adapt(name)
	if err != nil {
		return domain.FireRecord{}, err
	}
	zone, err := loadZone(shpPath)
	if err != nil {
		return domain.FireRecord{}, err
	}
	rec.Zone = zone
	return rec, nil
}

// adapt builds the metadata half of a FireRecord from the buffer file name
// and its parallel GeoJSON properties.
func (s *Source) adapt(bufferFile string) (domain.FireRecord, error) {
	jsonBuffer := strings.TrimSuffix(bufferFile, ".shp") + ".geojson"
	jsonPerimeter := strings.Replace(jsonBuffer, bufferTag, "perimeter", 1)

	raw, err := readProperties(filepath.Join(s.geoJSONDir, jsonBuffer))
	if err != nil {
		return domain.FireRecord{}, err
	}

	rec := domain.FireRecord{
		Perimeter:  jsonPerimeter,
		Buffer:     jsonBuffer,
		BaseName:   baseName(bufferFile),
		Population: s.population,
	}

	switch s.population {
	case domain.PopulationActive:
		var p activeProps
		if err := json.Unmarshal(raw, &p); err != nil {
			return domain.FireRecord{}, fmt.Errorf("parse %s: %w", jsonBuffer, err)
		}
		rec.Name = titleCase(p.IncidentName)
		rec.Year = yearFromCreateDate(p.CreateDate)
		rec.State = stateFromUnitID(p.UnitID)
		rec.Lat, rec.Lon = p.CenterLat, p.CenterLon
		rec.Perimeter = "active/" + rec.Perimeter
		rec.Buffer = "active/" + rec.Buffer
	default:
		var p catalogProps
		if err := json.Unmarshal(raw, &p); err != nil {
			return domain.FireRecord{}, fmt.Errorf("parse %s: %w", jsonBuffer, err)
		}
		rec.Name = titleCase(p.Name)
		rec.Year = yearString(p.Year)
		rec.State = p.State
		rec.Lat, rec.Lon = p.CenterLat, p.CenterLon
	}
	return rec, nil
}

// catalogProps are the GeoJSON properties of a confirmed incident. Year is
// numeric in some vintages of the dataset and a string in others.
type catalogProps struct {
	Year      any     `json:"Year"`
	State     string  `json:"State"`
	Name      string  `json:"Name"`
	CenterLat float64 `json:"Center_Lat"`
	CenterLon float64 `json:"Center_Lon"`
}

// activeProps are the GeoJSON properties of a current incident.
type activeProps struct {
	CreateDate   string  `json:"CreateDate"` // YYYY/MM/DD
	UnitID       *string `json:"UnitID"`
	IncidentName string  `json:"IncidentNa"`
	CenterLat    float64 `json:"Center_Lat"`
	CenterLon    float64 `json:"Center_Lon"`
}

// readProperties returns the raw properties of the first feature.
func readProperties(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc struct {
		Features []struct {
			Properties json.RawMessage `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("%s: no features", path)
	}
	return fc.Features[0].Properties, nil
}

// loadZone decodes the first polygonal feature of a buffer shapefile and
// transforms it into the raster's geographic reference.
func loadZone(path string) (geom.Polygonal, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer dec.Close()

	rasterSR, err := proj.Parse(rasterProj)
	if err != nil {
		return nil, err
	}
	srcSR, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("spatial reference of %s: %w", path, err)
	}
	trans, err := srcSR.NewTransform(rasterSR)
	if err != nil {
		return nil, fmt.Errorf("transform for %s: %w", path, err)
	}

	for {
		g, _, more := dec.DecodeRowFields()
		if !more {
			break
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("reproject %s: %w", path, err)
		}
		if poly, ok := gg.(geom.Polygonal); ok {
			return poly, nil
		}
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return nil, fmt.Errorf("%s: no polygonal features", path)
}

// baseName keeps the leading incident tokens of a buffer file name,
// e.g. "holy_2018_ca_10mi_buffer.shp" -> "holy_2018_ca". Used to key
// probability-basin lookups.
func baseName(bufferFile string) string {
	parts := strings.Split(strings.TrimSuffix(bufferFile, ".shp"), "_")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.ToLower(strings.Join(parts, "_"))
}

func titleCase(s string) string {
	return titleCaser.String(strings.ToLower(s))
}

// yearString normalizes the catalog Year property, which may arrive as a
// JSON number or string.
func yearString(v any) string {
	switch y := v.(type) {
	case string:
		return y
	case float64:
		return strconv.FormatFloat(y, 'f', -1, 64)
	default:
		return ""
	}
}

// yearFromCreateDate extracts the year from an active fire's creation date.
func yearFromCreateDate(d string) string {
	year, _, _ := strings.Cut(d, "/")
	return year
}

// stateFromUnitID derives the state from the reporting unit identifier.
// A missing unit leaves the state empty.
func stateFromUnitID(unitID *string) string {
	if unitID == nil {
		return ""
	}
	id := *unitID
	if len(id) < 2 {
		return id
	}
	return id[len(id)-2:]
}
