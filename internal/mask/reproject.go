package mask

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

// CoordTransformer converts coordinate arrays in place from one CRS to another.
// Coordinates are always (x, y), i.e. (easting, northing) or (longitude, latitude).
type CoordTransformer interface {
	TransformXY(xs, ys []float64) error
	Close()
}

// TransformerFactory builds a transformer between two CRS definitions.
type TransformerFactory func(srcCRS, dstCRS string) (CoordTransformer, error)

type gdalTransformer struct {
	src, dst *godal.SpatialRef
	tr       *godal.Transform
}

// GDALTransformer is the TransformerFactory backed by GDAL/PROJ. Spatial references
// created by godal use the traditional GIS axis order, so EPSG:4326 inputs are
// (longitude, latitude).
func GDALTransformer(srcCRS, dstCRS string) (CoordTransformer, error) {
	src, err := raster.SpatialRef(srcCRS)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source crs: %w", err)
	}
	dst, err := raster.SpatialRef(dstCRS)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to parse target crs: %w", err)
	}
	tr, err := godal.NewTransform(src, dst)
	if err != nil {
		src.Close()
		dst.Close()
		return nil, fmt.Errorf("failed to create transform: %w", err)
	}
	return &gdalTransformer{src: src, dst: dst, tr: tr}, nil
}

func (t *gdalTransformer) TransformXY(xs, ys []float64) error {
	return t.tr.TransformEx(xs, ys, nil, nil)
}

func (t *gdalTransformer) Close() {
	t.tr.Close()
	t.src.Close()
	t.dst.Close()
}

// Reproject returns a copy of fs with every geometry transformed to targetCRS.
// Attributes are shared with the input; the input geometries are left untouched.
func Reproject(fs FeatureSet, targetCRS string, newTransformer TransformerFactory) (FeatureSet, error) {
	out := FeatureSet{CRS: targetCRS, Features: make([]*Feature, len(fs.Features))}
	if fs.CRS == targetCRS {
		copy(out.Features, fs.Features)
		return out, nil
	}
	if fs.CRS == "" {
		return FeatureSet{}, fmt.Errorf("feature set has no crs to reproject from")
	}

	// Gather every vertex so the transformation is a single call.
	clones := make([]orb.Geometry, len(fs.Features))
	var xs, ys []float64
	for i, f := range fs.Features {
		clones[i] = orb.Clone(f.Geometry)
		project.Geometry(clones[i], func(p orb.Point) orb.Point {
			xs = append(xs, p[0])
			ys = append(ys, p[1])
			return p
		})
	}

	if len(xs) > 0 {
		tr, err := newTransformer(fs.CRS, targetCRS)
		if err != nil {
			return FeatureSet{}, err
		}
		err = tr.TransformXY(xs, ys)
		tr.Close()
		if err != nil {
			return FeatureSet{}, fmt.Errorf("failed to transform coordinates: %w", err)
		}
	}

	next := 0
	for i, f := range fs.Features {
		geometry := project.Geometry(clones[i], func(orb.Point) orb.Point {
			p := orb.Point{xs[next], ys[next]}
			next++
			return p
		})
		out.Features[i] = &Feature{Geometry: geometry, Properties: f.Properties}
	}
	return out, nil
}
