// Package sentinel loads Sentinel-2 bands for a region of interest onto a common
// 10 m grid, reading only the window of each scene the region needs.
package sentinel

import (
	"context"
	"fmt"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

// Band names used by the burn severity pipeline.
const (
	NIR  = "B08"
	SWIR = "B12"
)

// Band is one spectral channel of an item aligned to the target grid.
type Band struct {
	*raster.Grid
	Name             string
	ItemID           string
	NativeResolution float64
}

// BandReader gives windowed access to a single band asset.
type BandReader interface {
	GeoTransform() raster.GeoTransform
	CRS() string
	Size() (width, height int)
	NoData() (float64, bool)
	DataType() raster.DataType
	ReadWindow(ctx context.Context, w raster.Window) ([]float64, error)
	Close() error
}

// Opener resolves the asset of band in item itemID.
type Opener interface {
	Open(ctx context.Context, itemID, band string) (BandReader, error)
}

// MissingAssetError is returned when an item or one of its band assets does not exist.
type MissingAssetError struct {
	ItemID string
	Band   string
	Err    error
}

func (e *MissingAssetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asset %s of item %s is not available: %v", e.Band, e.ItemID, e.Err)
	}
	return fmt.Sprintf("asset %s of item %s is not available", e.Band, e.ItemID)
}

func (e *MissingAssetError) Unwrap() error {
	return e.Err
}
