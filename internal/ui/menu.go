package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/forest-guardian/burn-severity-cli/internal/delivery"
	"github.com/forest-guardian/burn-severity-cli/internal/properties"
)

type menuOption struct {
	title   string
	handler func(ctx context.Context, p *delivery.Pipeline)
}

var menuOptions = []menuOption{
	{"Compute burn severity (dNBR) for the configured scenes", ComputeBurnSeverity},
	{"Mask burn severity with the boundary and water layers", MaskBurnSeverity},
	{"Calculate burned area per severity class", CalculateAreas},
	{"Run the full pipeline", RunAll},
	{"Show the current configuration", func(_ context.Context, p *delivery.Pipeline) { ShowConfig(p.Config) }},
}

// ShowMenu displays the main menu and handles user input until the user exits
// or ctx is cancelled.
func ShowMenu(ctx context.Context, p *delivery.Pipeline) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintln(stdout, "\033[34m===================\033[0m")
		for i, opt := range menuOptions {
			fmt.Fprintf(stdout, "\033[34m%d. %s\033[0m\n", i+1, opt.title)
		}
		fmt.Fprintf(stdout, "\033[34m%d. Exit the application\033[0m\n", len(menuOptions)+1)

		choice, err := ReadInt("Please enter your choice: ", 1, len(menuOptions)+1)
		if err != nil {
			PrintError(err.Error())
			continue
		}
		if choice == len(menuOptions)+1 {
			fmt.Fprintln(stdout, "Exiting...")
			return
		}
		menuOptions[choice-1].handler(ctx, p)
	}
}

func ComputeBurnSeverity(ctx context.Context, p *delivery.Pipeline) {
	PrintWarning(fmt.Sprintf("- Bands %s and %s of %s and %s will be loaded from the %s source.",
		p.Config.NIRBand, p.Config.SWIRBand, p.Config.PreFireItem, p.Config.PostFireItem, p.Config.AssetSource))
	g, err := p.ComputeBurnSeverity(ctx)
	if err != nil {
		PrintError(err.Error())
		return
	}
	PrintSuccess(fmt.Sprintf("Burn severity (%dx%d) saved at %s", g.Width, g.Height, p.Config.BurnSeverityPath))
}

func MaskBurnSeverity(ctx context.Context, p *delivery.Pipeline) {
	PrintWarning(fmt.Sprintf("- The burn severity raster should be present at %s.", p.Config.BurnSeverityPath))
	if _, err := p.MaskBurnSeverity(ctx); err != nil {
		PrintError(err.Error())
		return
	}
	PrintSuccess(fmt.Sprintf("Masked burn severity saved at %s", p.Config.MaskedBurnSeverityPath))
}

func CalculateAreas(ctx context.Context, p *delivery.Pipeline) {
	PrintWarning(fmt.Sprintf("- The masked burn severity raster should be present at %s.", p.Config.MaskedBurnSeverityPath))
	results, err := p.CalculateAreas(ctx)
	if err != nil {
		PrintError(err.Error())
		return
	}
	fmt.Fprintln(stdout)
	for _, r := range results {
		fmt.Fprintf(stdout, "\033[32m- %-22s %10d px %12.2f ha\033[0m\n", r.Label, r.Pixels, r.Hectares)
	}
	PrintSuccess(fmt.Sprintf("Area report saved at %s", p.Config.AreaReportPath))
}

func RunAll(ctx context.Context, p *delivery.Pipeline) {
	if !Confirm("Run every stage and overwrite previous outputs?") {
		return
	}
	if err := p.RunAll(ctx); err != nil {
		PrintError(err.Error())
		return
	}
	PrintSuccess(fmt.Sprintf("Pipeline finished, report saved at %s", p.Config.AreaReportPath))
}

// ShowConfig prints the settings a run depends on.
func ShowConfig(cfg *properties.Config) {
	rows := [][2]string{
		{"Pre-fire item", cfg.PreFireItem},
		{"Post-fire item", cfg.PostFireItem},
		{"Fire window", cfg.FireStart.Format("2006-01-02") + " to " + cfg.FireEnd.Format("2006-01-02")},
		{"Bounds", cfg.Bounds.String()},
		{"Bounds CRS", orDefault(cfg.BoundsCRS, "scene CRS")},
		{"Bands", cfg.NIRBand + ", " + cfg.SWIRBand},
		{"Resolution", fmt.Sprintf("%g", cfg.TargetResolution)},
		{"Asset source", cfg.AssetSource},
		{"Boundary", fmt.Sprintf("%s (%s in %s)", cfg.BoundaryPath, cfg.BoundaryAttribute, strings.Join(cfg.BoundaryValues, ", "))},
		{"Water", fmt.Sprintf("%s (%s in %s)", cfg.WaterPath, cfg.WaterAttribute, strings.Join(cfg.WaterValues, ", "))},
		{"Burn severity", cfg.BurnSeverityPath},
		{"Masked burn severity", cfg.MaskedBurnSeverityPath},
		{"Area report", cfg.AreaReportPath},
		{"Severity table", orDefault(cfg.SeverityTablePath, "built-in")},
	}
	fmt.Fprintln(stdout)
	for _, row := range rows {
		fmt.Fprintf(stdout, "\033[32m%-22s\033[0m %s\n", row[0]+":", row[1])
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
