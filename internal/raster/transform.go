package raster

import (
	"errors"
	"fmt"
	"math"
)

// GeoTransform is the GDAL six-term affine transform:
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
type GeoTransform [6]float64

// NorthUp builds a transform with square pixels of size res and the given upper-left origin.
func NorthUp(originX, originY, res float64) GeoTransform {
	return GeoTransform{originX, res, 0, originY, 0, -res}
}

// Apply maps fractional pixel coordinates to world coordinates.
func (gt GeoTransform) Apply(col, row float64) (float64, float64) {
	x := gt[0] + col*gt[1] + row*gt[2]
	y := gt[3] + col*gt[4] + row*gt[5]
	return x, y
}

// Inverse returns the transform mapping world coordinates back to pixel coordinates.
func (gt GeoTransform) Inverse() (GeoTransform, error) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 {
		return GeoTransform{}, errors.New("geotransform is not invertible")
	}
	inv := GeoTransform{}
	inv[1] = gt[5] / det
	inv[2] = -gt[2] / det
	inv[4] = -gt[4] / det
	inv[5] = gt[1] / det
	inv[0] = -(gt[0]*inv[1] + gt[3]*inv[2])
	inv[3] = -(gt[0]*inv[4] + gt[3]*inv[5])
	return inv, nil
}

// Resolution returns the absolute pixel width and height.
func (gt GeoTransform) Resolution() (float64, float64) {
	return math.Abs(gt[1]), math.Abs(gt[5])
}

// IsNorthUp reports whether the transform has no rotation terms.
func (gt GeoTransform) IsNorthUp() bool {
	return gt[2] == 0 && gt[4] == 0
}

// Bounds is an axis aligned region in world coordinates.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

func (b Bounds) Width() float64  { return b.MaxX - b.MinX }
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Valid reports whether the region has a positive extent.
func (b Bounds) Valid() bool {
	return b.Width() > 0 && b.Height() > 0
}

// Window is an integer pixel region of a raster.
type Window struct {
	Col, Row      int
	Width, Height int
}

// Intersect clips the window to a raster of the given size.
func (w Window) Intersect(width, height int) Window {
	col0, row0 := max(w.Col, 0), max(w.Row, 0)
	col1, row1 := min(w.Col+w.Width, width), min(w.Row+w.Height, height)
	if col1 < col0 {
		col1 = col0
	}
	if row1 < row0 {
		row1 = row0
	}
	return Window{Col: col0, Row: row0, Width: col1 - col0, Height: row1 - row0}
}

func (w Window) Empty() bool {
	return w.Width <= 0 || w.Height <= 0
}

// WindowCovering returns the smallest pixel window of gt whose pixels cover b.
// Only north-up transforms are supported.
func (gt GeoTransform) WindowCovering(b Bounds) (Window, error) {
	if !gt.IsNorthUp() {
		return Window{}, errors.New("rotated geotransforms are not supported")
	}
	inv, err := gt.Inverse()
	if err != nil {
		return Window{}, err
	}
	c0, r0 := inv.Apply(b.MinX, b.MaxY)
	c1, r1 := inv.Apply(b.MaxX, b.MinY)
	colMin, colMax := math.Min(c0, c1), math.Max(c0, c1)
	rowMin, rowMax := math.Min(r0, r1), math.Max(r0, r1)

	col := int(math.Floor(colMin + epsilon))
	row := int(math.Floor(rowMin + epsilon))
	return Window{
		Col:    col,
		Row:    row,
		Width:  int(math.Ceil(colMax-epsilon)) - col,
		Height: int(math.Ceil(rowMax-epsilon)) - row,
	}, nil
}

// WindowTransform returns the transform whose origin is the upper left corner of w.
func (gt GeoTransform) WindowTransform(w Window) GeoTransform {
	x, y := gt.Apply(float64(w.Col), float64(w.Row))
	out := gt
	out[0], out[3] = x, y
	return out
}

// epsilon absorbs floating point noise when snapping world coordinates to pixel edges.
const epsilon = 1e-6
