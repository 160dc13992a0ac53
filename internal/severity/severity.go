// Package severity aggregates a masked dNBR raster into per class burned area.
package severity

import (
	"fmt"
	"math"
	"runtime"

	"github.com/gammazero/workerpool"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

const squareMetersPerHectare = 10000.0

// Range is one severity class. Both bounds are inclusive.
type Range struct {
	Low   float64 `csv:"low"`
	High  float64 `csv:"high"`
	Label string  `csv:"label"`
}

func (r Range) String() string {
	return fmt.Sprintf("%s (%g to %g)", r.Label, r.Low, r.High)
}

// DefaultRanges returns the USGS derived dNBR classes. Values below 0.10 are unburned.
// Adjacent classes do not touch: values between 0.269 and 0.27, 0.439 and 0.44, or
// 0.659 and 0.66 belong to no class and are reported by Unclassified.
func DefaultRanges() []Range {
	return []Range{
		{Low: 0.10, High: 0.269, Label: "Low severity"},
		{Low: 0.27, High: 0.439, Label: "Moderate-low severity"},
		{Low: 0.44, High: 0.659, Label: "Moderate-high severity"},
		{Low: 0.66, High: 1.3, Label: "High severity"},
	}
}

// Result is the area covered by one class.
type Result struct {
	Label    string  `csv:"severity"`
	Low      float64 `csv:"low"`
	High     float64 `csv:"high"`
	Pixels   int     `csv:"pixels"`
	Hectares float64 `csv:"hectares"`
}

// Area counts the valid pixels of g with low <= value <= high and converts the count
// to hectares using the pixel size of g. Float32 grids are compared in float32, the
// precision their samples were stored with.
func Area(low, high float64, g *raster.Grid, label string) Result {
	in := between(low, high, g.DataType)

	pixels := 0
	for _, v := range g.Data {
		if !valid(g, v) {
			continue
		}
		if in(v) {
			pixels++
		}
	}
	return Result{
		Label:    label,
		Low:      low,
		High:     high,
		Pixels:   pixels,
		Hectares: hectares(g, pixels),
	}
}

// Aggregate computes the area of every range over g. Ranges are scanned independently
// and the results keep the order of ranges.
func Aggregate(g *raster.Grid, ranges []Range) ([]Result, error) {
	for _, r := range ranges {
		if r.Low > r.High || math.IsNaN(r.Low) || math.IsNaN(r.High) {
			return nil, fmt.Errorf("invalid severity range %s", r)
		}
	}

	results := make([]Result, len(ranges))
	wp := workerpool.New(runtime.NumCPU())
	for i, r := range ranges {
		wp.Submit(func() {
			results[i] = Area(r.Low, r.High, g, r.Label)
		})
	}
	wp.StopWait()
	return results, nil
}

// Unclassified counts the valid pixels inside the span of ranges that no range claims,
// which are the values falling in the gaps between adjacent classes.
func Unclassified(g *raster.Grid, ranges []Range) Result {
	res := Result{Label: "Unclassified"}
	if len(ranges) == 0 {
		return res
	}

	res.Low, res.High = ranges[0].Low, ranges[0].High
	tests := make([]func(float64) bool, len(ranges))
	for i, r := range ranges {
		res.Low = math.Min(res.Low, r.Low)
		res.High = math.Max(res.High, r.High)
		tests[i] = between(r.Low, r.High, g.DataType)
	}
	span := between(res.Low, res.High, g.DataType)

outer:
	for _, v := range g.Data {
		if !valid(g, v) || !span(v) {
			continue
		}
		for _, in := range tests {
			if in(v) {
				continue outer
			}
		}
		res.Pixels++
	}
	res.Hectares = hectares(g, res.Pixels)
	return res
}

// TotalHectares sums the area of results.
func TotalHectares(results []Result) float64 {
	total := 0.0
	for _, r := range results {
		total += r.Hectares
	}
	return total
}

func valid(g *raster.Grid, v float64) bool {
	return !g.IsNoData(v) && !math.IsInf(v, 0)
}

func between(low, high float64, dt raster.DataType) func(float64) bool {
	if dt == raster.Float32 {
		lo, hi := float32(low), float32(high)
		return func(v float64) bool {
			f := float32(v)
			return f >= lo && f <= hi
		}
	}
	return func(v float64) bool {
		return v >= low && v <= high
	}
}

func hectares(g *raster.Grid, pixels int) float64 {
	return float64(pixels) * g.PixelArea() / squareMetersPerHectare
}
