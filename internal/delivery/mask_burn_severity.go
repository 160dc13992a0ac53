package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forest-guardian/burn-severity-cli/internal/mask"
	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

// MaskBurnSeverity keeps the burn severity pixels inside the selected boundary
// polygons, then discards those under the selected water bodies, and writes the
// result to MaskedBurnSeverityPath.
func (p *Pipeline) MaskBurnSeverity(ctx context.Context) (*raster.Grid, error) {
	cfg := p.Config
	g, err := p.Rasters.Read(cfg.BurnSeverityPath)
	if err != nil {
		return nil, &StageError{Stage: StageMask, Params: map[string]string{"path": cfg.BurnSeverityPath}, Err: err}
	}

	steps := []struct {
		name      string
		path      string
		attribute string
		values    []string
		polarity  mask.Polarity
	}{
		{"boundary", cfg.BoundaryPath, cfg.BoundaryAttribute, cfg.BoundaryValues, mask.KeepInside},
		{"water", cfg.WaterPath, cfg.WaterAttribute, cfg.WaterValues, mask.KeepOutside},
	}

	bar := p.progress(len(steps), "Preparing masks")
	layers := make([]mask.Layer, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			bar.Exit()
			return nil, err
		}
		params := map[string]string{
			"layer":     step.name,
			"path":      step.path,
			"attribute": step.attribute,
			"values":    strings.Join(step.values, ","),
		}

		all, err := p.LoadFeatures(step.path)
		if err != nil {
			bar.Exit()
			return nil, &StageError{Stage: StageMask, Params: params, Err: err}
		}
		selected := mask.Filter(all, step.attribute, step.values...)
		projected, err := mask.Reproject(selected, g.CRS, p.NewTransformer)
		if err != nil {
			bar.Exit()
			return nil, &StageError{Stage: StageMask, Params: params, Err: fmt.Errorf("failed to reproject %s features: %w", step.name, err)}
		}
		slog.Debug("mask features selected",
			"layer", step.name,
			"selected", selected.Len(),
			"total", all.Len(),
			"hectares", projected.Area()/10000,
		)

		layers = append(layers, mask.Layer{Name: step.name, Features: projected, Polarity: step.polarity})
		bar.Add(1)
	}
	bar.Finish()

	masked, err := mask.Compose(g, layers...)
	if err != nil {
		return nil, &StageError{Stage: StageMask, Params: map[string]string{"path": cfg.BurnSeverityPath}, Err: err}
	}

	if err := p.Rasters.Write(cfg.MaskedBurnSeverityPath, masked); err != nil {
		return nil, &StageError{Stage: StageMask, Params: map[string]string{"path": cfg.MaskedBurnSeverityPath}, Err: err}
	}
	slog.Info("masked burn severity saved", "path", cfg.MaskedBurnSeverityPath, "nodata_pixels", masked.CountNoData())
	return masked, nil
}
