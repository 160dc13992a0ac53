package mask

import (
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

type countyRecord struct {
	name string
	id   int
	wkt  string
}

// writeCounties writes a polygon shapefile in EPSG:32619. An empty wkt leaves the
// record without a shape.
func writeCounties(t *testing.T, path string, records []countyRecord) {
	t.Helper()
	sr, err := raster.SpatialRef(utm)
	require.NoError(t, err)
	defer sr.Close()

	ds, err := godal.CreateVector(godal.Shapefile, path)
	require.NoError(t, err)
	layer, err := ds.CreateLayer("counties", sr, godal.GTPolygon,
		godal.NewFieldDefinition("NAME", godal.FTString),
		godal.NewFieldDefinition("ID", godal.FTInt))
	require.NoError(t, err)

	for _, r := range records {
		feat, err := layer.NewFeature(nil)
		require.NoError(t, err)
		fields := feat.Fields()
		require.NoError(t, feat.SetFieldValue(fields["NAME"], r.name))
		require.NoError(t, feat.SetFieldValue(fields["ID"], r.id))
		if r.wkt != "" {
			geom, err := godal.NewGeometryFromWKT(r.wkt, nil)
			require.NoError(t, err)
			require.NoError(t, feat.SetGeometry(geom))
			geom.Close()
		}
		require.NoError(t, layer.CreateFeature(feat))
		feat.Close()
	}
	require.NoError(t, ds.Close())
}

func TestReadFeaturesShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "County_Polygons.shp")
	writeCounties(t, path, []countyRecord{
		{"Shelburne", 1, "POLYGON ((0 0,20 0,20 40,0 40,0 0))"},
		{"Unmapped", 2, ""},
		{"Queens", 3, "POLYGON ((20 0,40 0,40 40,20 40,20 0))"},
	})

	fs, err := ReadFeatures(path)
	require.NoError(t, err)
	require.Equal(t, 2, fs.Len(), "records without a shape are skipped")

	assert.Equal(t, "Shelburne", fs.Features[0].Properties["NAME"])
	assert.Equal(t, "1", fs.Features[0].Properties["ID"])
	assert.Equal(t, "Queens", fs.Features[1].Properties["NAME"])
	assert.InDelta(t, 800.0, FeatureSet{Features: fs.Features[:1]}.Area(), 1e-9)
	assert.Equal(t, orb.Bound{Min: orb.Point{20, 0}, Max: orb.Point{40, 40}}, fs.Features[1].Geometry.Bound())

	got, err := raster.SpatialRef(fs.CRS)
	require.NoError(t, err)
	defer got.Close()
	want, err := raster.SpatialRef(utm)
	require.NoError(t, err)
	defer want.Close()
	assert.True(t, got.IsSame(want), "layer crs %s", fs.CRS)
}

func TestShapefileMaskMatchesGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "County_Polygons.shp")
	writeCounties(t, path, []countyRecord{
		{"Shelburne", 1, "POLYGON ((0 0,20 0,20 40,0 40,0 0))"},
		{"Queens", 3, "POLYGON ((20 0,40 0,40 40,20 40,20 0))"},
	})
	all, err := ReadFeatures(path)
	require.NoError(t, err)

	g := testGrid()
	g.CRS = all.CRS
	out, err := Apply(g, Filter(all, "NAME", "Shelburne"), KeepInside)
	require.NoError(t, err)

	assert.Equal(t, [][]bool{
		{true, true, false, false},
		{true, true, false, false},
		{true, true, false, false},
		{true, true, false, false},
	}, validMask(out))
}

func TestGDALTransformerAxisOrder(t *testing.T) {
	tr, err := GDALTransformer("EPSG:4326", utm)
	require.NoError(t, err)
	defer tr.Close()

	// (longitude, latitude) on the central meridian of UTM zone 19N at the equator.
	xs, ys := []float64{-69}, []float64{0}
	require.NoError(t, tr.TransformXY(xs, ys))

	assert.InDelta(t, 500000.0, xs[0], 1e-3)
	assert.InDelta(t, 0.0, ys[0], 1e-3)
}

func TestGDALTransformerRejectsUnknownCRS(t *testing.T) {
	_, err := GDALTransformer("EPSG:4326", "EPSG:not-a-code")
	assert.Error(t, err)
}

func TestReprojectWithGDAL(t *testing.T) {
	fs := FeatureSet{CRS: "EPSG:4326", Features: []*Feature{
		{Geometry: orb.Point{-69, 0}, Properties: map[string]any{"NAME": "origin"}},
	}}

	out, err := Reproject(fs, utm, GDALTransformer)
	require.NoError(t, err)

	p := out.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 500000.0, p[0], 1e-3)
	assert.InDelta(t, 0.0, p[1], 1e-3)
	assert.Equal(t, orb.Point{-69, 0}, fs.Features[0].Geometry)
}
