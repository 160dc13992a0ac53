// Package mask turns polygon feature sets into inclusion and exclusion masks over
// rasters: attribute filtering, reprojection to the raster CRS and rasterization.
package mask

import (
	"fmt"
	"log/slog"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

// Polarity selects which side of the polygons survives a mask.
type Polarity int

const (
	// KeepInside discards every pixel not covered by a polygon.
	KeepInside Polarity = iota
	// KeepOutside discards every pixel covered by a polygon.
	KeepOutside
)

func (p Polarity) String() string {
	if p == KeepOutside {
		return "keep-outside"
	}
	return "keep-inside"
}

// CRSMismatchError is returned when features and a raster (or two feature sets) are
// combined without sharing a CRS.
type CRSMismatchError struct {
	Operation   string
	FeaturesCRS string
	TargetCRS   string
}

func (e *CRSMismatchError) Error() string {
	return fmt.Sprintf("%s: features in crs %q do not match target crs %q, reproject them first", e.Operation, e.FeaturesCRS, e.TargetCRS)
}

// Apply returns a copy of g where the pixels outside the policy of polarity are set
// to nodata. Only sample values change; geometry, CRS and data type are kept.
func Apply(g *raster.Grid, fs FeatureSet, polarity Polarity) (*raster.Grid, error) {
	if fs.CRS != g.CRS {
		return nil, &CRSMismatchError{Operation: "apply mask", FeaturesCRS: fs.CRS, TargetCRS: g.CRS}
	}

	out := g.Clone()
	if fs.Empty() {
		slog.Warn("masking with an empty feature set", "polarity", polarity.String())
		if polarity == KeepInside {
			out.Fill(out.NoDataValue())
		}
		return out, nil
	}

	covered, err := Coverage(g, fs)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize features: %w", err)
	}

	nodata := out.NoDataValue()
	discardCovered := polarity == KeepOutside
	for i, c := range covered {
		if c == discardCovered {
			out.Data[i] = nodata
		}
	}
	return out, nil
}

// Layer is one step of a mask composition.
type Layer struct {
	Name     string
	Features FeatureSet
	Polarity Polarity
}

// Compose applies layers to g in the given order. Boundary inclusion before water
// exclusion is the canonical order for burn severity maps.
func Compose(g *raster.Grid, layers ...Layer) (*raster.Grid, error) {
	out := g
	for _, layer := range layers {
		before := out.CountNoData()
		masked, err := Apply(out, layer.Features, layer.Polarity)
		if err != nil {
			return nil, fmt.Errorf("failed to apply %s mask: %w", layer.Name, err)
		}
		slog.Info("mask applied",
			"layer", layer.Name,
			"polarity", layer.Polarity.String(),
			"features", layer.Features.Len(),
			"discarded_pixels", masked.CountNoData()-before,
		)
		out = masked
	}
	if out == g {
		out = g.Clone()
	}
	return out, nil
}
