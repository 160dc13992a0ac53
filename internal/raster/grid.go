package raster

import (
	"fmt"
	"math"
)

// DataType is the on-disk sample type of a grid.
type DataType string

const (
	Byte    DataType = "Byte"
	UInt16  DataType = "UInt16"
	Int16   DataType = "Int16"
	UInt32  DataType = "UInt32"
	Int32   DataType = "Int32"
	Float32 DataType = "Float32"
	Float64 DataType = "Float64"
)

// Grid is a single band georeferenced raster held in memory. Samples are stored
// row-major as float64 regardless of DataType; DataType describes the precision
// the samples had on disk and will have when written back.
type Grid struct {
	Width     int
	Height    int
	Transform GeoTransform
	CRS       string
	NoData    float64
	HasNoData bool
	DataType  DataType
	Data      []float64
}

// New allocates a Float32 grid filled with zeros and NaN as nodata.
func New(width, height int, transform GeoTransform, crs string) *Grid {
	return &Grid{
		Width:     width,
		Height:    height,
		Transform: transform,
		CRS:       crs,
		NoData:    math.NaN(),
		HasNoData: true,
		DataType:  Float32,
		Data:      make([]float64, width*height),
	}
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Data = make([]float64, len(g.Data))
	copy(out.Data, g.Data)
	return &out
}

func (g *Grid) index(col, row int) int {
	return row*g.Width + col
}

func (g *Grid) At(col, row int) float64 {
	return g.Data[g.index(col, row)]
}

func (g *Grid) Set(col, row int, v float64) {
	g.Data[g.index(col, row)] = v
}

// NoDataValue is the sample written into invalidated pixels.
func (g *Grid) NoDataValue() float64 {
	if g.HasNoData {
		return g.NoData
	}
	return math.NaN()
}

// IsNoData reports whether v marks a pixel without a valid measurement.
// NaN is always treated as nodata.
func (g *Grid) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return g.HasNoData && v == g.NoData
}

// Fill sets every sample to v.
func (g *Grid) Fill(v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// CountNoData returns the number of nodata samples.
func (g *Grid) CountNoData() int {
	n := 0
	for _, v := range g.Data {
		if g.IsNoData(v) {
			n++
		}
	}
	return n
}

// PixelSize returns the absolute pixel width and height in CRS units.
func (g *Grid) PixelSize() (float64, float64) {
	return g.Transform.Resolution()
}

// PixelArea returns the ground area of one pixel in squared CRS units.
func (g *Grid) PixelArea() float64 {
	w, h := g.PixelSize()
	return w * h
}

// Bounds returns the world extent covered by the grid.
func (g *Grid) Bounds() Bounds {
	b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, c := range [][2]float64{{0, 0}, {float64(g.Width), 0}, {0, float64(g.Height)}, {float64(g.Width), float64(g.Height)}} {
		x, y := g.Transform.Apply(c[0], c[1])
		b.MinX, b.MaxX = math.Min(b.MinX, x), math.Max(b.MaxX, x)
		b.MinY, b.MaxY = math.Min(b.MinY, y), math.Max(b.MaxY, y)
	}
	return b
}

// SameGeometry reports whether g and other share dimensions, transform and CRS.
func (g *Grid) SameGeometry(other *Grid) bool {
	return g.Width == other.Width &&
		g.Height == other.Height &&
		g.Transform == other.Transform &&
		g.CRS == other.CRS
}

// GeometryMismatchError is returned when two grids that must be co-registered are not.
type GeometryMismatchError struct {
	Reason string
}

func (e *GeometryMismatchError) Error() string {
	return fmt.Sprintf("grids are not co-registered: %s", e.Reason)
}

// CheckCoregistered returns a *GeometryMismatchError describing the first difference
// between a and b, or nil when they share grid geometry.
func CheckCoregistered(a, b *Grid) error {
	switch {
	case a.Width != b.Width || a.Height != b.Height:
		return &GeometryMismatchError{Reason: fmt.Sprintf("size %dx%d != %dx%d", a.Width, a.Height, b.Width, b.Height)}
	case a.Transform != b.Transform:
		return &GeometryMismatchError{Reason: fmt.Sprintf("transform %v != %v", a.Transform, b.Transform)}
	case a.CRS != b.CRS:
		return &GeometryMismatchError{Reason: fmt.Sprintf("crs %q != %q", a.CRS, b.CRS)}
	}
	return nil
}
