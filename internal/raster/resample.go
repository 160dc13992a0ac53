package raster

import (
	"fmt"
	"math"
)

// SampleNearest resamples src onto the grid described by transform, width and height
// using nearest neighbour: each destination pixel takes the source pixel containing
// its centre. Destination pixels whose centre falls outside src become nodata.
func SampleNearest(src *Grid, transform GeoTransform, width, height int) (*Grid, error) {
	inv, err := src.Transform.Inverse()
	if err != nil {
		return nil, fmt.Errorf("failed to invert source transform: %w", err)
	}

	dst := &Grid{
		Width:     width,
		Height:    height,
		Transform: transform,
		CRS:       src.CRS,
		NoData:    src.NoData,
		HasNoData: src.HasNoData,
		DataType:  src.DataType,
		Data:      make([]float64, width*height),
	}
	fill := src.NoDataValue()

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x, y := transform.Apply(float64(col)+0.5, float64(row)+0.5)
			sc, sr := inv.Apply(x, y)
			srcCol, srcRow := int(math.Floor(sc)), int(math.Floor(sr))
			if srcCol < 0 || srcRow < 0 || srcCol >= src.Width || srcRow >= src.Height {
				dst.Data[row*width+col] = fill
				continue
			}
			dst.Data[row*width+col] = src.Data[srcRow*src.Width+srcCol]
		}
	}
	return dst, nil
}

// ResampleNearest changes the pixel size of a north-up grid to res, keeping the
// origin. Width and height scale inversely with the pixel size. A grid already at
// res is returned as an exact copy.
func ResampleNearest(src *Grid, res float64) (*Grid, error) {
	if res <= 0 {
		return nil, fmt.Errorf("invalid target resolution %g", res)
	}
	if !src.Transform.IsNorthUp() {
		return nil, fmt.Errorf("cannot resample a rotated grid")
	}
	dx, dy := src.PixelSize()
	if dx == res && dy == res {
		return src.Clone(), nil
	}

	width := int(math.Round(float64(src.Width) * dx / res))
	height := int(math.Round(float64(src.Height) * dy / res))

	transform := src.Transform
	transform[1] = math.Copysign(res, src.Transform[1])
	transform[5] = math.Copysign(res, src.Transform[5])

	return SampleNearest(src, transform, width, height)
}
