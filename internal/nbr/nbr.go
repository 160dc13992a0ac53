// Package nbr computes the Normalized Burn Ratio of co-registered near infrared and
// short wave infrared bands, and the temporal difference (dNBR) of two ratios.
package nbr

import (
	"log/slog"
	"math"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

// Ratio returns (nir - swir) / (nir + swir) for every pixel. Pixels where either
// input is nodata, or where nir + swir is zero, become nodata in the output.
func Ratio(nir, swir *raster.Grid) (*raster.Grid, error) {
	if err := raster.CheckCoregistered(nir, swir); err != nil {
		return nil, err
	}

	out := newIndexGrid(nir)
	undefined := 0
	for i := range out.Data {
		n, s := nir.Data[i], swir.Data[i]
		if nir.IsNoData(n) || swir.IsNoData(s) {
			out.Data[i] = out.NoData
			continue
		}
		v := (n - s) / (n + s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out.Data[i] = out.NoData
			undefined++
			continue
		}
		out.Data[i] = v
	}

	if undefined > 0 {
		slog.Warn("undefined burn ratio written as nodata", "pixels", undefined)
	}
	return out, nil
}

// Difference returns pre - post. Positive values indicate vegetation loss.
// Results outside [-2, 2] can only come from invalid inputs and are written as nodata.
func Difference(pre, post *raster.Grid) (*raster.Grid, error) {
	if err := raster.CheckCoregistered(pre, post); err != nil {
		return nil, err
	}

	out := newIndexGrid(pre)
	for i := range out.Data {
		a, b := pre.Data[i], post.Data[i]
		if pre.IsNoData(a) || post.IsNoData(b) {
			out.Data[i] = out.NoData
			continue
		}
		d := a - b
		if math.IsNaN(d) || d < -2 || d > 2 {
			out.Data[i] = out.NoData
			continue
		}
		out.Data[i] = d
	}
	return out, nil
}

func newIndexGrid(like *raster.Grid) *raster.Grid {
	return raster.New(like.Width, like.Height, like.Transform, like.CRS)
}
