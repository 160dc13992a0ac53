package nbr

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

func bandGrid(values ...float64) *raster.Grid {
	g := raster.New(len(values), 1, raster.NorthUp(767760, 4847040, 10), "EPSG:32619")
	g.DataType = raster.UInt16
	g.NoData = 0
	copy(g.Data, values)
	return g
}

func TestRatio(t *testing.T) {
	nir := bandGrid(3000, 1200, 500, 4000, 100)
	swir := bandGrid(1000, 1200, 1500, 1, 65535)

	out, err := Ratio(nir, swir)
	require.NoError(t, err)

	assert.Equal(t, raster.Float32, out.DataType)
	assert.True(t, nir.SameGeometry(out))
	assert.InDelta(t, 0.5, out.Data[0], 1e-12)
	assert.InDelta(t, 0.0, out.Data[1], 1e-12)
	assert.InDelta(t, -0.5, out.Data[2], 1e-12)

	for i, v := range out.Data {
		if out.IsNoData(v) {
			continue
		}
		assert.GreaterOrEqual(t, v, -1.0, "pixel %d", i)
		assert.LessOrEqual(t, v, 1.0, "pixel %d", i)
	}
}

func TestRatioUndefinedIsNoData(t *testing.T) {
	nir := bandGrid(0, 5, -5)
	nir.HasNoData = false
	swir := bandGrid(0, 5, 5)
	swir.HasNoData = false

	out, err := Ratio(nir, swir)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(out.Data[0]), "0/0 must become nodata")
	assert.InDelta(t, 0.0, out.Data[1], 1e-12)
	assert.True(t, math.IsNaN(out.Data[2]), "x/0 must become nodata")
}

func TestRatioPropagatesInputNoData(t *testing.T) {
	nir := bandGrid(0, 2000)
	swir := bandGrid(1000, 1000)

	out, err := Ratio(nir, swir)
	require.NoError(t, err)
	assert.True(t, out.IsNoData(out.Data[0]))
	assert.False(t, out.IsNoData(out.Data[1]))
}

func TestRatioRequiresCoregisteredBands(t *testing.T) {
	nir := bandGrid(1, 2, 3)
	swir := bandGrid(1, 2, 3)
	swir.Transform = raster.NorthUp(767760, 4847040, 20)

	_, err := Ratio(nir, swir)
	var mismatch *raster.GeometryMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestDifferenceOfIdenticalIndexIsZero(t *testing.T) {
	a := raster.New(3, 2, raster.NorthUp(0, 0, 10), "EPSG:32619")
	copy(a.Data, []float64{-1, -0.3, 0, 0.2, 0.75, 1})

	out, err := Difference(a, a.Clone())
	require.NoError(t, err)
	for _, v := range out.Data {
		assert.Equal(t, 0.0, v)
	}
}

func TestDifference(t *testing.T) {
	pre := raster.New(4, 1, raster.NorthUp(0, 0, 10), "EPSG:32619")
	post := raster.New(4, 1, raster.NorthUp(0, 0, 10), "EPSG:32619")
	copy(pre.Data, []float64{0.6, 0.1, math.NaN(), 0.5})
	copy(post.Data, []float64{-0.2, 0.3, 0.1, 7})

	out, err := Difference(pre, post)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, out.Data[0], 1e-12)
	assert.InDelta(t, -0.2, out.Data[1], 1e-12)
	assert.True(t, out.IsNoData(out.Data[2]))
	assert.True(t, out.IsNoData(out.Data[3]), "values outside [-2, 2] are invalid")
}

func TestDifferenceRequiresCoregisteredRasters(t *testing.T) {
	pre := raster.New(2, 2, raster.NorthUp(0, 0, 10), "EPSG:32619")
	post := raster.New(2, 2, raster.NorthUp(0, 0, 10), "EPSG:4326")

	_, err := Difference(pre, post)
	var mismatch *raster.GeometryMismatchError
	assert.ErrorAs(t, err, &mismatch)
}
