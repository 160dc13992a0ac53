package sentinel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

type gdalReader struct {
	ds   *godal.Dataset
	band godal.Band
	gt   raster.GeoTransform
	crs  string
}

// OpenGDAL opens the first band of any raster GDAL can read, such as a local GeoTIFF
// or a /vsicurl/ cloud optimized GeoTIFF.
func OpenGDAL(name string) (BandReader, error) {
	ds, err := raster.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("failed to get GeoTransform of %s: %w", name, err)
	}
	bands := ds.Bands()
	if len(bands) == 0 {
		ds.Close()
		return nil, fmt.Errorf("raster %s has no bands", name)
	}
	return &gdalReader{ds: ds, band: bands[0], gt: raster.GeoTransform(gt), crs: ds.Projection()}, nil
}

func (r *gdalReader) GeoTransform() raster.GeoTransform { return r.gt }

func (r *gdalReader) CRS() string { return r.crs }

func (r *gdalReader) Size() (int, int) {
	s := r.band.Structure()
	return s.SizeX, s.SizeY
}

func (r *gdalReader) NoData() (float64, bool) {
	return r.band.NoData()
}

func (r *gdalReader) DataType() raster.DataType {
	return raster.DataTypeFromGDAL(r.band.Structure().DataType)
}

func (r *gdalReader) ReadWindow(ctx context.Context, w raster.Window) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]float64, w.Width*w.Height)
	if err := r.band.Read(w.Col, w.Row, buf, w.Width, w.Height); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *gdalReader) Close() error {
	return r.ds.Close()
}

// LocalSource serves bands from a directory laid out as <Dir>/<item>/<band>.tif.
type LocalSource struct {
	Dir string
}

func (s LocalSource) Path(itemID, band string) string {
	return filepath.Join(s.Dir, itemID, band+".tif")
}

func (s LocalSource) Open(ctx context.Context, itemID, band string) (BandReader, error) {
	path := s.Path(itemID, band)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingAssetError{ItemID: itemID, Band: band}
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return OpenGDAL(path)
}
