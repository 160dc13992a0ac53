package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forest-guardian/burn-severity-cli/internal/notification"
	"github.com/forest-guardian/burn-severity-cli/internal/severity"
)

// CalculateAreas aggregates the masked burn severity into hectares per severity
// class, writes the CSV report and sends the summary notification.
func (p *Pipeline) CalculateAreas(ctx context.Context) ([]severity.Result, error) {
	cfg := p.Config
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranges := severity.DefaultRanges()
	if cfg.SeverityTablePath != "" {
		loaded, err := severity.LoadRanges(cfg.SeverityTablePath)
		if err != nil {
			return nil, &StageError{Stage: StageArea, Params: map[string]string{"table": cfg.SeverityTablePath}, Err: err}
		}
		ranges = loaded
	}

	g, err := p.Rasters.Read(cfg.MaskedBurnSeverityPath)
	if err != nil {
		return nil, &StageError{Stage: StageArea, Params: map[string]string{"path": cfg.MaskedBurnSeverityPath}, Err: err}
	}

	results, err := severity.Aggregate(g, ranges)
	if err != nil {
		return nil, &StageError{Stage: StageArea, Params: map[string]string{"path": cfg.MaskedBurnSeverityPath}, Err: err}
	}

	fields := make([]notification.DiscordEmbedField, 0, len(results))
	for _, r := range results {
		slog.Info("severity area", "class", r.Label, "low", r.Low, "high", r.High, "pixels", r.Pixels, "hectares", r.Hectares)
		fields = append(fields, notification.DiscordEmbedField{
			Name:   r.Label,
			Value:  fmt.Sprintf("%.2f ha", r.Hectares),
			Inline: true,
		})
	}
	if gap := severity.Unclassified(g, ranges); gap.Pixels > 0 {
		slog.Warn("pixels between severity classes were not counted", "pixels", gap.Pixels, "hectares", gap.Hectares)
	}

	if err := severity.WriteReport(cfg.AreaReportPath, results); err != nil {
		return nil, &StageError{Stage: StageArea, Params: map[string]string{"path": cfg.AreaReportPath}, Err: err}
	}

	if p.Notifier != nil {
		summary := fmt.Sprintf("Burned area between %s and %s: %.2f ha (%s to %s)",
			cfg.FireStart.Format("2006-01-02"), cfg.FireEnd.Format("2006-01-02"),
			severity.TotalHectares(results), cfg.PreFireItem, cfg.PostFireItem)
		if err := p.Notifier.SendSuccessNotification(summary, fields...); err != nil {
			slog.Warn("failed to send success notification", "error", err)
		}
	}
	return results, nil
}
