package fires

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrh-stid/debrisflow-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func writeGeoJSON(t *testing.T, dir, name, properties string) {
	t.Helper()
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":` + properties + `,"geometry":null}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
}

func TestCatalogAdapt(t *testing.T) {
	dir := t.TempDir()
	writeGeoJSON(t, dir, "holy_2018_ca_10mi_buffer.geojson",
		`{"Year":2018,"State":"CA","Name":"HOLY","Center_Lat":33.71,"Center_Lon":-117.54}`)

	src := NewCatalogSource("", dir, discardLogger())
	rec, err := src.adapt("holy_2018_ca_10mi_buffer.shp")
	require.NoError(t, err)

	assert.Equal(t, "Holy", rec.Name)
	assert.Equal(t, "2018", rec.Year)
	assert.Equal(t, "CA", rec.State)
	assert.Equal(t, "holy_2018_ca_perimeter.geojson", rec.Perimeter)
	assert.Equal(t, "holy_2018_ca_10mi_buffer.geojson", rec.Buffer)
	assert.Equal(t, "holy_2018_ca", rec.BaseName)
	assert.Equal(t, 33.71, rec.Lat)
	assert.Equal(t, -117.54, rec.Lon)
	assert.Equal(t, domain.PopulationCatalog, rec.Population)
}

func TestCatalogAdapt_YearAsString(t *testing.T) {
	dir := t.TempDir()
	writeGeoJSON(t, dir, "camp_2018_ca_10mi_buffer.geojson",
		`{"Year":"2018","State":"CA","Name":"camp","Center_Lat":39.8,"Center_Lon":-121.4}`)

	src := NewCatalogSource("", dir, discardLogger())
	rec, err := src.adapt("camp_2018_ca_10mi_buffer.shp")
	require.NoError(t, err)
	assert.Equal(t, "2018", rec.Year)
	assert.Equal(t, "Camp", rec.Name)
}

func TestActiveAdapt(t *testing.T) {
	dir := t.TempDir()
	writeGeoJSON(t, dir, "bobcat_2020_ca_10mi_buffer.geojson",
		`{"CreateDate":"2020/09/06","UnitID":"CAANF","IncidentNa":"BOBCAT","Center_Lat":34.24,"Center_Lon":-117.97}`)

	src := NewActiveSource("", dir, discardLogger())
	rec, err := src.adapt("bobcat_2020_ca_10mi_buffer.shp")
	require.NoError(t, err)

	assert.Equal(t, "Bobcat", rec.Name)
	assert.Equal(t, "2020", rec.Year)
	assert.Equal(t, "NF", rec.State)
	assert.Equal(t, "active/bobcat_2020_ca_perimeter.geojson", rec.Perimeter)
	assert.Equal(t, "active/bobcat_2020_ca_10mi_buffer.geojson", rec.Buffer)
	assert.Equal(t, domain.PopulationActive, rec.Population)
}

func TestActiveAdapt_MissingUnitID(t *testing.T) {
	dir := t.TempDir()
	writeGeoJSON(t, dir, "creek_2020_ca_10mi_buffer.geojson",
		`{"CreateDate":"2020/09/04","UnitID":null,"IncidentNa":"creek","Center_Lat":37.2,"Center_Lon":-119.3}`)

	src := NewActiveSource("", dir, discardLogger())
	rec, err := src.adapt("creek_2020_ca_10mi_buffer.shp")
	require.NoError(t, err)
	assert.Equal(t, "", rec.State)
}

func TestAdapt_NoFeatures(t *testing.T) {
	dir := t.TempDir()
	doc := `{"type":"FeatureCollection","features":[]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty_2020_ca_10mi_buffer.geojson"), []byte(doc), 0o644))

	src := NewCatalogSource("", dir, discardLogger())
	_, err := src.adapt("empty_2020_ca_10mi_buffer.shp")
	assert.ErrorContains(t, err, "no features")
}

func TestLoad_SkipsUnreadableFires(t *testing.T) {
	bufferDir := t.TempDir()
	geoJSONDir := t.TempDir()

	// A shapefile with no parallel GeoJSON is skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(bufferDir, "holy_2018_ca_10mi_buffer.shp"), []byte{}, 0o644))

	src := NewCatalogSource(bufferDir, geoJSONDir, discardLogger())
	records, err := src.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"holy_2018_ca_10mi_buffer.shp", "holy_2018_ca"},
		{"SOUTH_2020_OR_10mi_buffer.shp", "south_2020_or"},
		{"short.shp", "short"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseName(tt.in))
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Holy", titleCase("HOLY"))
	assert.Equal(t, "El Dorado", titleCase("EL DORADO"))
	assert.Equal(t, "Creek", titleCase("creek"))
}
