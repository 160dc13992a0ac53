package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/forest-guardian/burn-severity-cli/internal/nbr"
	"github.com/forest-guardian/burn-severity-cli/internal/raster"
	"github.com/forest-guardian/burn-severity-cli/internal/sentinel"
)

type bandRequest struct {
	itemID string
	band   string
}

// ComputeBurnSeverity loads the NIR and SWIR bands of both scenes, computes the
// pre and post fire NBR and writes their difference to BurnSeverityPath.
func (p *Pipeline) ComputeBurnSeverity(ctx context.Context) (*raster.Grid, error) {
	cfg := p.Config
	bounds, err := p.regionBounds(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageSeverity, Params: map[string]string{
			"item":       cfg.PreFireItem,
			"bounds":     cfg.Bounds.String(),
			"bounds_crs": cfg.BoundsCRS,
		}, Err: err}
	}

	requests := []bandRequest{
		{cfg.PreFireItem, cfg.NIRBand},
		{cfg.PreFireItem, cfg.SWIRBand},
		{cfg.PostFireItem, cfg.NIRBand},
		{cfg.PostFireItem, cfg.SWIRBand},
	}
	bands := make([]*sentinel.Band, len(requests))

	bar := p.progress(len(requests), "Loading bands")
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		g.Go(func() error {
			band, err := sentinel.LoadBand(gctx, p.Opener, req.itemID, req.band, bounds, cfg.TargetResolution)
			if err != nil {
				return &StageError{Stage: StageSeverity, Params: map[string]string{
					"item":   req.itemID,
					"band":   req.band,
					"bounds": bounds.String(),
				}, Err: err}
			}
			bands[i] = band
			bar.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		bar.Exit()
		return nil, err
	}
	bar.Finish()

	preNBR, err := nbr.Ratio(bands[0].Grid, bands[1].Grid)
	if err != nil {
		return nil, p.indexError("pre-fire ratio", cfg.PreFireItem, err)
	}
	postNBR, err := nbr.Ratio(bands[2].Grid, bands[3].Grid)
	if err != nil {
		return nil, p.indexError("post-fire ratio", cfg.PostFireItem, err)
	}
	dnbr, err := nbr.Difference(preNBR, postNBR)
	if err != nil {
		return nil, p.indexError("difference", cfg.PreFireItem+"-"+cfg.PostFireItem, err)
	}

	if err := p.Rasters.Write(cfg.BurnSeverityPath, dnbr); err != nil {
		return nil, &StageError{Stage: StageSeverity, Params: map[string]string{"path": cfg.BurnSeverityPath}, Err: err}
	}
	slog.Info("burn severity saved",
		"path", cfg.BurnSeverityPath,
		"size", fmt.Sprintf("%dx%d", dnbr.Width, dnbr.Height),
		"nodata_pixels", dnbr.CountNoData(),
	)
	return dnbr, nil
}

func (p *Pipeline) indexError(step, item string, err error) error {
	return &StageError{Stage: StageSeverity, Params: map[string]string{"step": step, "item": item}, Err: err}
}

// regionBounds returns the configured bounds in the CRS of the pre-fire scene.
func (p *Pipeline) regionBounds(ctx context.Context) (raster.Bounds, error) {
	cfg := p.Config
	if cfg.BoundsCRS == "" {
		return cfg.Bounds, nil
	}

	reader, err := p.Opener.Open(ctx, cfg.PreFireItem, cfg.NIRBand)
	if err != nil {
		return raster.Bounds{}, err
	}
	sceneCRS := reader.CRS()
	reader.Close()
	if sceneCRS == cfg.BoundsCRS {
		return cfg.Bounds, nil
	}

	tr, err := p.NewTransformer(cfg.BoundsCRS, sceneCRS)
	if err != nil {
		return raster.Bounds{}, fmt.Errorf("failed to transform bounds: %w", err)
	}
	defer tr.Close()

	b := cfg.Bounds
	xs := []float64{b.MinX, b.MaxX, b.MaxX, b.MinX}
	ys := []float64{b.MinY, b.MinY, b.MaxY, b.MaxY}
	if err := tr.TransformXY(xs, ys); err != nil {
		return raster.Bounds{}, fmt.Errorf("failed to transform bounds: %w", err)
	}

	out := raster.Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for i := range xs {
		out.MinX, out.MaxX = math.Min(out.MinX, xs[i]), math.Max(out.MaxX, xs[i])
		out.MinY, out.MaxY = math.Min(out.MinY, ys[i]), math.Max(out.MaxY, ys[i])
	}
	return out, nil
}
