package sentinel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/burn-severity-cli/internal/cache"
	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

const (
	originX = 500000.0
	originY = 4900060.0
	utm     = "EPSG:32620"
)

type memReader struct {
	grid    *raster.Grid
	windows []raster.Window
	closed  bool
}

func (r *memReader) GeoTransform() raster.GeoTransform { return r.grid.Transform }
func (r *memReader) CRS() string { return r.grid.CRS }
func (r *memReader) Size() (int, int) { return r.grid.Width, r.grid.Height }
func (r *memReader) NoData() (float64, bool) { return r.grid.NoData, r.grid.HasNoData }
func (r *memReader) DataType() raster.DataType { return r.grid.DataType }
func (r *memReader) Close() error { r.closed = true; return nil }

func (r *memReader) ReadWindow(ctx context.Context, w raster.Window) ([]float64, error) {
	r.windows = append(r.windows, w)
	out := make([]float64, 0, w.Width*w.Height)
	for row := w.Row; row < w.Row+w.Height; row++ {
		for col := w.Col; col < w.Col+w.Width; col++ {
			out = append(out, r.grid.At(col, row))
		}
	}
	return out, nil
}

// scene is a Sentinel-2 like UInt16 band with 0 as nodata. Pixel values encode
// their position as offset + row*10 + col.
func scene(res float64, size int, offset float64) *memReader {
	g := raster.New(size, size, raster.NorthUp(originX, originY, res), utm)
	g.DataType = raster.UInt16
	g.NoData = 0
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			g.Set(col, row, offset+float64(row*10+col))
		}
	}
	return &memReader{grid: g}
}

type memOpener map[string]*memReader

func (o memOpener) Open(ctx context.Context, itemID, band string) (BandReader, error) {
	r, ok := o[itemID+"/"+band]
	if !ok {
		return nil, &MissingAssetError{ItemID: itemID, Band: band}
	}
	return r, nil
}

func item() memOpener {
	return memOpener{
		"pre/B08": scene(10, 6, 1),
		"pre/B12": scene(20, 3, 100),
	}
}

var roi = raster.Bounds{MinX: originX + 10, MinY: originY - 50, MaxX: originX + 40, MaxY: originY - 10}

func TestTargetGrid(t *testing.T) {
	gt, w, h, err := TargetGrid(roi, raster.NorthUp(originX, originY, 20), 10)
	require.NoError(t, err)
	assert.Equal(t, raster.NorthUp(originX+10, originY-10, 10), gt)
	assert.Equal(t, 3, w)
	assert.Equal(t, 4, h)

	unaligned := raster.Bounds{MinX: originX + 13, MinY: originY - 48, MaxX: originX + 38, MaxY: originY - 13}
	gt2, w2, h2, err := TargetGrid(unaligned, raster.NorthUp(originX, originY, 10), 10)
	require.NoError(t, err)
	assert.Equal(t, gt, gt2)
	assert.Equal(t, []int{w, h}, []int{w2, h2})

	_, _, _, err = TargetGrid(raster.Bounds{MinX: 1, MaxX: 0, MinY: 0, MaxY: 1}, gt, 10)
	assert.Error(t, err)
	_, _, _, err = TargetGrid(roi, gt, 0)
	assert.Error(t, err)
}

func TestLoadBandAtTargetResolutionClips(t *testing.T) {
	opener := item()
	band, err := LoadBand(context.Background(), opener, "pre", NIR, roi, 10)
	require.NoError(t, err)

	assert.Equal(t, NIR, band.Name)
	assert.Equal(t, "pre", band.ItemID)
	assert.Equal(t, 10.0, band.NativeResolution)
	assert.Equal(t, raster.UInt16, band.DataType)
	assert.Equal(t, utm, band.CRS)
	require.Equal(t, 3, band.Width)
	require.Equal(t, 4, band.Height)
	for row := 0; row < band.Height; row++ {
		for col := 0; col < band.Width; col++ {
			assert.Equal(t, 1+float64((row+1)*10+col+1), band.At(col, row), "pixel %d,%d", col, row)
		}
	}

	reader := opener["pre/B08"]
	assert.Equal(t, []raster.Window{{Col: 1, Row: 1, Width: 3, Height: 4}}, reader.windows)
	assert.True(t, reader.closed)
}

func TestLoadBandUpsamplesCoarserBand(t *testing.T) {
	opener := item()
	band, err := LoadBand(context.Background(), opener, "pre", SWIR, roi, 10)
	require.NoError(t, err)

	assert.Equal(t, 20.0, band.NativeResolution)
	dx, dy := band.PixelSize()
	assert.Equal(t, []float64{10, 10}, []float64{dx, dy})

	// Target pixel centres fall at 15, 25, 35 (and 45 for rows) metres from the
	// scene origin, inside 20 m pixels 0, 1, 1 (and 2).
	srcCol := []int{0, 1, 1}
	srcRow := []int{0, 1, 1, 2}
	for row := 0; row < band.Height; row++ {
		for col := 0; col < band.Width; col++ {
			assert.Equal(t, 100+float64(srcRow[row]*10+srcCol[col]), band.At(col, row), "pixel %d,%d", col, row)
		}
	}
	assert.Equal(t, []raster.Window{{Col: 0, Row: 0, Width: 2, Height: 3}}, opener["pre/B12"].windows)
}

func TestLoadBandGivesIdenticalGeometryAcrossBands(t *testing.T) {
	opener := item()
	nir, err := LoadBand(context.Background(), opener, "pre", NIR, roi, 10)
	require.NoError(t, err)
	swir, err := LoadBand(context.Background(), opener, "pre", SWIR, roi, 10)
	require.NoError(t, err)

	assert.True(t, nir.SameGeometry(swir.Grid))
	assert.NoError(t, raster.CheckCoregistered(nir.Grid, swir.Grid))
}

func TestLoadBandOutsideSceneIsNoData(t *testing.T) {
	overhang := raster.Bounds{MinX: originX - 10, MinY: originY - 50, MaxX: originX + 20, MaxY: originY - 10}
	band, err := LoadBand(context.Background(), item(), "pre", NIR, overhang, 10)
	require.NoError(t, err)

	require.Equal(t, 3, band.Width)
	for row := 0; row < band.Height; row++ {
		assert.True(t, band.IsNoData(band.At(0, row)))
		assert.False(t, band.IsNoData(band.At(1, row)))
	}
}

func TestLoadBandErrors(t *testing.T) {
	_, err := LoadBand(context.Background(), item(), "post", NIR, roi, 10)
	var missing *MissingAssetError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "post", missing.ItemID)
	assert.Equal(t, NIR, missing.Band)

	far := raster.Bounds{MinX: 600000, MinY: 4800000, MaxX: 600100, MaxY: 4800100}
	_, err = LoadBand(context.Background(), item(), "pre", NIR, far, 10)
	assert.Error(t, err)
}

func stacServer(t *testing.T, itemHits, tokenHits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/sentinel-2-l2a/items/S2A_20230601", func(w http.ResponseWriter, r *http.Request) {
		itemHits.Add(1)
		w.Header().Set("Content-Type", "application/geo+json")
		fmt.Fprint(w, `{"id": "S2A_20230601", "assets": {
			"B08": {"href": "https://blob.example.com/B08.tif"},
			"B12": {"href": "https://blob.example.com/B12.tif"}
		}}`)
	})
	mux.HandleFunc("/collections/sentinel-2-l2a/items/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/token/sentinel-2-l2a", func(w http.ResponseWriter, r *http.Request) {
		tokenHits.Add(1)
		fmt.Fprint(w, `{"token": "st=1&sig=abc", "msft:expiry": "2099-01-01T00:00:00Z"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSTACSourceOpen(t *testing.T) {
	var itemHits, tokenHits atomic.Int32
	srv := stacServer(t, &itemHits, &tokenHits)

	signer := NewPlanetarySigner("sentinel-2-l2a")
	signer.TokenURL = srv.URL + "/token"
	signer.Client = srv.Client()

	hrefs := cache.NewFileCache[map[string]string](t.TempDir(), 0)
	var opened []string
	src := NewSTACSource(context.Background(), STACConfig{BaseURL: srv.URL + "/", Collection: "sentinel-2-l2a"}, signer, hrefs)
	src.open = func(name string) (BandReader, error) {
		opened = append(opened, name)
		return scene(10, 6, 1), nil
	}

	_, err := src.Open(context.Background(), "S2A_20230601", NIR)
	require.NoError(t, err)
	_, err = src.Open(context.Background(), "S2A_20230601", SWIR)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/vsicurl/https://blob.example.com/B08.tif?st=1&sig=abc",
		"/vsicurl/https://blob.example.com/B12.tif?st=1&sig=abc",
	}, opened)
	assert.Equal(t, int32(1), itemHits.Load(), "item must be served from cache")
	assert.Equal(t, int32(1), tokenHits.Load(), "token must be reused")
}

func TestSTACSourceMissingAssets(t *testing.T) {
	var itemHits, tokenHits atomic.Int32
	srv := stacServer(t, &itemHits, &tokenHits)
	src := NewSTACSource(context.Background(), STACConfig{BaseURL: srv.URL, Collection: "sentinel-2-l2a"}, nil, nil)

	_, err := src.Href(context.Background(), "S2A_20230601", "B8A")
	var missing *MissingAssetError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "B8A", missing.Band)

	_, err = src.Href(context.Background(), "S2B_20230611", NIR)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "S2B_20230611", missing.ItemID)

	href, err := src.Href(context.Background(), "S2A_20230601", NIR)
	require.NoError(t, err)
	assert.Equal(t, "https://blob.example.com/B08.tif", href)
	assert.Zero(t, tokenHits.Load())
}

func TestMissingAssetErrorUnwraps(t *testing.T) {
	cause := errors.New("item not found")
	err := fmt.Errorf("failed to load: %w", &MissingAssetError{ItemID: "a", Band: NIR, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "asset B08 of item a is not available")
}
