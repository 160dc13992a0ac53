package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

// snap absorbs floating point noise when bounds already sit on a pixel edge.
const snap = 1e-6

// TargetGrid returns the north-up grid of pixel size res covering bounds. The grid
// origin is snapped onto the lattice of source, so every band of a tile produces the
// same grid for the same bounds whatever its native resolution.
func TargetGrid(bounds raster.Bounds, source raster.GeoTransform, res float64) (raster.GeoTransform, int, int, error) {
	if !bounds.Valid() {
		return raster.GeoTransform{}, 0, 0, fmt.Errorf("invalid bounds %s", bounds)
	}
	if res <= 0 {
		return raster.GeoTransform{}, 0, 0, fmt.Errorf("invalid target resolution %g", res)
	}
	if !source.IsNorthUp() {
		return raster.GeoTransform{}, 0, 0, fmt.Errorf("rotated source grids are not supported")
	}

	originX := source[0] + math.Floor((bounds.MinX-source[0])/res+snap)*res
	originY := source[3] - math.Floor((source[3]-bounds.MaxY)/res+snap)*res
	width := int(math.Ceil((bounds.MaxX-originX)/res - snap))
	height := int(math.Ceil((originY-bounds.MinY)/res - snap))

	return raster.NorthUp(originX, originY, res), width, height, nil
}

// LoadBand reads band of item itemID clipped to bounds, which are expressed in the
// CRS of the asset, and aligns it to a grid of pixel size targetRes. Only the source
// window covering the target grid is read. Coarser assets are upsampled with nearest
// neighbour; pixels of the target grid outside the scene are nodata.
func LoadBand(ctx context.Context, opener Opener, itemID, band string, bounds raster.Bounds, targetRes float64) (*Band, error) {
	reader, err := opener.Open(ctx, itemID, band)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	sourceGT := reader.GeoTransform()
	transform, width, height, err := TargetGrid(bounds, sourceGT, targetRes)
	if err != nil {
		return nil, fmt.Errorf("failed to build target grid for %s/%s: %w", itemID, band, err)
	}
	target := raster.Grid{Width: width, Height: height, Transform: transform}

	sizeX, sizeY := reader.Size()
	window, err := sourceGT.WindowCovering(target.Bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to compute read window for %s/%s: %w", itemID, band, err)
	}
	window = window.Intersect(sizeX, sizeY)
	if window.Empty() {
		return nil, fmt.Errorf("bounds %s do not intersect %s/%s", bounds, itemID, band)
	}

	data, err := reader.ReadWindow(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", itemID, band, err)
	}

	src := &raster.Grid{
		Width:     window.Width,
		Height:    window.Height,
		Transform: sourceGT.WindowTransform(window),
		CRS:       reader.CRS(),
		DataType:  reader.DataType(),
		Data:      data,
	}
	src.NoData, src.HasNoData = reader.NoData()

	// The window starts on the source lattice, which the target grid shares, so
	// resampling it to targetRes and then clipping is pixel-exact.
	resampled, err := raster.ResampleNearest(src, targetRes)
	if err != nil {
		return nil, fmt.Errorf("failed to resample %s/%s: %w", itemID, band, err)
	}
	aligned, err := raster.SampleNearest(resampled, transform, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to align %s/%s: %w", itemID, band, err)
	}

	native, _ := sourceGT.Resolution()
	slog.Debug("band loaded",
		"item", itemID,
		"band", band,
		"native_resolution", native,
		"window", fmt.Sprintf("%d,%d %dx%d", window.Col, window.Row, window.Width, window.Height),
		"size", fmt.Sprintf("%dx%d", width, height),
	)
	return &Band{Grid: aligned, Name: band, ItemID: itemID, NativeResolution: native}, nil
}
