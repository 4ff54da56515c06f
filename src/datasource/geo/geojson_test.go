package geo

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"

	"ObservatoireDelinquance/src/datasource/file"
	"ObservatoireDelinquance/src/models"
)

const regionsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"code": "53", "nom": "Bretagne"},
     "geometry": {"type": "Polygon", "coordinates": [[[-5,47],[-1,47],[-1,49],[-5,49],[-5,47]]]}},
    {"type": "Feature", "properties": {"code": "11", "nom": "Île-de-France"},
     "geometry": {"type": "Polygon", "coordinates": [[[1,48],[3,48],[3,49],[1,49],[1,48]]]}},
    {"type": "Feature", "properties": {"code": "94", "nom": "Corse"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[8,41],[9,41],[9,43],[8,43],[8,41]]]]}}
  ]
}`

func loadSample(t *testing.T) *geojson.FeatureCollection {
	t.Helper()
	fc, err := ParseGeoJSON([]byte(regionsGeoJSON))
	require.NoError(t, err)
	return fc
}

func TestGuessRegionKey(t *testing.T) {
	fc := loadSample(t)
	assert.Equal(t, "nom", GuessRegionKey(fc, nil))

	fc.Features[0].Properties = map[string]interface{}{"code": 53.0, "libgeo": "Bretagne"}
	assert.Equal(t, "libgeo", GuessRegionKey(fc, nil))

	fc.Features[0].Properties = map[string]interface{}{"b": 1.0, "a": 2.0}
	assert.Equal(t, "a", GuessRegionKey(fc, nil))

	fc.Features[0].Properties = map[string]interface{}{}
	assert.Equal(t, "nom", GuessRegionKey(fc, nil))
}

func TestWithNormNames(t *testing.T) {
	fc := loadSample(t)
	norm, key := WithNormNames(fc, nil)

	assert.Equal(t, "nom", key)
	assert.Equal(t, "ile-de-france", norm.Features[1].Properties[NormKey])
	// 原集合不变
	_, ok := fc.Features[1].Properties[NormKey]
	assert.False(t, ok)
}

func TestMatchingDiagnostics(t *testing.T) {
	norm, _ := WithNormNames(loadSample(t), nil)
	metrics := []models.RegionMetric{
		{NomRegion: "Bretagne", NomRegionNorm: "bretagne"},
		{NomRegion: "Île-de-France", NomRegionNorm: "ile-de-france"},
		{NomRegion: "Guadeloupe", NomRegionNorm: "guadeloupe"},
	}

	d := MatchingDiagnostics(metrics, norm)
	assert.Equal(t, 3, d.NRegionsData)
	assert.Equal(t, 3, d.NRegionsGeo)
	assert.Equal(t, []string{"guadeloupe"}, d.MissingInGeo)
	assert.Equal(t, []string{"corse"}, d.MissingInData)
}

func TestJoin(t *testing.T) {
	norm, _ := WithNormNames(loadSample(t), nil)
	metrics := []models.RegionMetric{
		{NomRegion: "Bretagne", NomRegionNorm: "bretagne", Annee: 2023, TauxRegion: 40, HasTaux: true, NbRegion: 10, PopRegion: 250},
		{NomRegion: "Île-de-France", NomRegionNorm: "ile-de-france", Annee: 2023, TauxRegion: 80, HasTaux: true, VariationRegion: -2},
	}

	joined, bounds := Join(norm, metrics, models.MetricTaux)
	require.Len(t, joined.Features, 3)

	bzh := joined.Features[0].Properties
	assert.Equal(t, 40.0, bzh["value"])
	assert.Equal(t, "Bretagne", bzh["nom_region"])
	assert.NotEqual(t, NoDataColor, bzh["fill"])
	assert.NotEqual(t, bzh["fill"], joined.Features[1].Properties["fill"])

	corse := joined.Features[2].Properties
	assert.Equal(t, NoDataColor, corse["fill"])
	_, has := corse["value"]
	assert.False(t, has)

	require.NotNil(t, bounds)
	assert.Equal(t, -5.0, bounds.Min(0))
	assert.Equal(t, 3.0, bounds.Max(0))
	assert.Equal(t, 49.0, bounds.Max(1))

	joined, _ = Join(norm, metrics, models.MetricVariation)
	assert.Equal(t, -2.0, joined.Features[1].Properties["value"])
}

func TestShapes(t *testing.T) {
	norm, key := WithNormNames(loadSample(t), nil)
	shapes := Shapes(norm, key)
	require.Len(t, shapes, 3)
	assert.Equal(t, "bretagne", shapes[0].Norm)
	assert.InDelta(t, 8.0, shapes[0].Area, 1e-9)
	assert.InDelta(t, -3.0, shapes[0].Centroid[0], 1e-9)
	assert.InDelta(t, 48.0, shapes[0].Centroid[1], 1e-9)
}

func TestScale(t *testing.T) {
	s := NewScale(models.MetricTaux, []float64{10, 20})
	assert.NotEqual(t, s.Hex(10), s.Hex(20))
	assert.Equal(t, s.Hex(20), s.Hex(500))

	v := NewScale(models.MetricVariation, []float64{-1, 3})
	assert.NotEqual(t, v.Hex(-3), v.Hex(3))
}

func TestLoadGeoJSON_Missing(t *testing.T) {
	_, err := LoadGeoJSON(filepath.Join(t.TempDir(), "regions.geojson"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, file.ErrDataFileMissing))
}

func TestSVGPaths(t *testing.T) {
	norm, key := WithNormNames(loadSample(t), nil)
	joined, _ := Join(norm, []models.RegionMetric{
		{NomRegion: "Bretagne", NomRegionNorm: "bretagne", TauxRegion: 40, HasTaux: true},
	}, models.MetricTaux)

	paths := SVGPaths(joined, key, 600, 400)
	require.Len(t, paths, 3)
	assert.Equal(t, "Bretagne", paths[0].Name)
	assert.Equal(t, "Bretagne : 40.00", paths[0].Title)
	assert.True(t, strings.HasPrefix(paths[0].D, "M0.0 "))
	assert.Equal(t, NoDataColor, paths[2].Fill)

	assert.Nil(t, SVGPaths(&geojson.FeatureCollection{}, key, 600, 400))
}
