package mask

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONCRS is the CRS of RFC 7946 GeoJSON files without a legacy "crs" member.
const GeoJSONCRS = "EPSG:4326"

// ReadFeatures loads every feature of a vector file. GeoJSON is decoded directly;
// any other format GDAL/OGR can open (shapefiles, geopackages) is read from its
// first layer.
func ReadFeatures(path string) (FeatureSet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return readGeoJSON(path)
	default:
		return readOGR(path)
	}
}

func readGeoJSON(path string) (FeatureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FeatureSet{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeGeoJSON(data)
}

// DecodeGeoJSON decodes a FeatureCollection. A legacy named "crs" member is honoured,
// otherwise coordinates are taken as EPSG:4326.
func DecodeGeoJSON(data []byte) (FeatureSet, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return FeatureSet{}, fmt.Errorf("failed to decode GeoJSON: %w", err)
	}

	fs := FeatureSet{CRS: legacyCRS(fc.ExtraMembers), Features: make([]*Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		fs.Features = append(fs.Features, &Feature{
			Geometry:   f.Geometry,
			Properties: map[string]any(f.Properties),
		})
	}
	return fs, nil
}

var epsgURN = regexp.MustCompile(`EPSG:+(\d+)$`)

func legacyCRS(members geojson.Properties) string {
	crs, ok := members["crs"].(map[string]any)
	if !ok {
		return GeoJSONCRS
	}
	props, ok := crs["properties"].(map[string]any)
	if !ok {
		return GeoJSONCRS
	}
	name, _ := props["name"].(string)
	switch {
	case strings.HasSuffix(name, "CRS84"):
		return GeoJSONCRS
	case epsgURN.MatchString(name):
		return "EPSG:" + epsgURN.FindStringSubmatch(name)[1]
	default:
		return GeoJSONCRS
	}
}

func readOGR(path string) (FeatureSet, error) {
	ds, err := godal.Open(path, godal.VectorOnly(), godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}))
	if err != nil {
		return FeatureSet{}, fmt.Errorf("failed to open vector file %s: %w", path, err)
	}
	defer ds.Close()

	layers := ds.Layers()
	if len(layers) == 0 {
		return FeatureSet{}, fmt.Errorf("vector file %s has no layers", path)
	}
	layer := layers[0]

	fs := FeatureSet{}
	if sr := layer.SpatialRef(); sr != nil {
		wkt, err := sr.WKT()
		if err != nil {
			return FeatureSet{}, fmt.Errorf("failed to export layer crs: %w", err)
		}
		fs.CRS = wkt
	}

	for {
		feat := layer.NextFeature()
		if feat == nil {
			break
		}
		f, err := convertFeature(feat)
		feat.Close()
		if err != nil {
			return FeatureSet{}, fmt.Errorf("failed to read feature from %s: %w", path, err)
		}
		if f != nil {
			fs.Features = append(fs.Features, f)
		}
	}
	return fs, nil
}

func convertFeature(feat *godal.Feature) (*Feature, error) {
	// Records without a shape come back as an empty handle.
	geom := feat.Geometry()
	if geom.Empty() {
		return nil, nil
	}

	json, err := geom.GeoJSON()
	if err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry([]byte(json))
	if err != nil {
		return nil, err
	}

	properties := make(map[string]any)
	for name, field := range feat.Fields() {
		properties[name] = field.String()
	}
	return &Feature{Geometry: g.Coordinates, Properties: properties}, nil
}
