package mask

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

// Coverage rasterizes the polygons of fs against the grid of g. A pixel is covered
// when its centre lies inside a polygon; holes are not covered. Point and line
// geometries cover nothing.
//
// Polygons are burned one at a time into an in-memory GDAL dataset sharing the
// grid's geotransform, so overlapping parts of a multipolygon add up instead of
// cancelling out under the even-odd rule.
func Coverage(g *raster.Grid, fs FeatureSet) ([]bool, error) {
	ds, err := godal.Create(godal.Memory, "", 1, godal.Byte, g.Width, g.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to create coverage dataset: %w", err)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform([6]float64(g.Transform)); err != nil {
		return nil, fmt.Errorf("failed to set GeoTransform: %w", err)
	}

	extent := g.Bounds()
	gridBound := orb.Bound{
		Min: orb.Point{extent.MinX, extent.MinY},
		Max: orb.Point{extent.MaxX, extent.MaxY},
	}

	for _, f := range fs.Features {
		if f.Geometry == nil || !f.Geometry.Bound().Intersects(gridBound) {
			continue
		}
		for _, polygon := range polygons(f.Geometry) {
			if len(polygon) == 0 || planar.Area(polygon) == 0 {
				continue
			}
			if err := burn(ds, polygon); err != nil {
				return nil, err
			}
		}
	}

	buf := make([]byte, g.Width*g.Height)
	if err := ds.Bands()[0].Read(0, 0, buf, g.Width, g.Height); err != nil {
		return nil, fmt.Errorf("failed to read coverage: %w", err)
	}
	covered := make([]bool, len(buf))
	for i, v := range buf {
		covered[i] = v != 0
	}
	return covered, nil
}

func burn(ds *godal.Dataset, p orb.Polygon) error {
	data, err := geojson.NewGeometry(p).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode polygon: %w", err)
	}
	geom, err := godal.NewGeometryFromGeoJSON(string(data))
	if err != nil {
		return fmt.Errorf("failed to build polygon geometry: %w", err)
	}
	defer geom.Close()

	if err := ds.RasterizeGeometry(geom, godal.Values(1)); err != nil {
		return fmt.Errorf("failed to rasterize polygon: %w", err)
	}
	return nil
}

func polygons(g orb.Geometry) []orb.Polygon {
	switch geom := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{geom}
	case orb.MultiPolygon:
		return geom
	case orb.Bound:
		return []orb.Polygon{geom.ToPolygon()}
	case orb.Collection:
		var out []orb.Polygon
		for _, child := range geom {
			out = append(out, polygons(child)...)
		}
		return out
	default:
		return nil
	}
}
