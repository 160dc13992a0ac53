package delivery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/forest-guardian/burn-severity-cli/internal/cache"
	"github.com/forest-guardian/burn-severity-cli/internal/mask"
	"github.com/forest-guardian/burn-severity-cli/internal/notification"
	"github.com/forest-guardian/burn-severity-cli/internal/properties"
	"github.com/forest-guardian/burn-severity-cli/internal/raster"
	"github.com/forest-guardian/burn-severity-cli/internal/sentinel"
)

// Stage names.
const (
	StageSeverity = "severity"
	StageMask     = "mask"
	StageArea     = "area"
)

// StageError names the failing stage and its parameters.
type StageError struct {
	Stage  string
	Params map[string]string
	Err    error
}

func (e *StageError) Error() string {
	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]string, len(keys))
	for i, k := range keys {
		params[i] = k + "=" + e.Params[k]
	}
	return fmt.Sprintf("%s stage failed [%s]: %v", e.Stage, strings.Join(params, " "), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RasterStore persists intermediate grids.
type RasterStore interface {
	Read(path string) (*raster.Grid, error)
	Write(path string, g *raster.Grid) error
}

// GeoTIFFStore keeps grids as GeoTIFF files on disk.
type GeoTIFFStore struct{}

func (GeoTIFFStore) Read(path string) (*raster.Grid, error) { return raster.ReadGeoTIFF(path) }

func (GeoTIFFStore) Write(path string, g *raster.Grid) error { return raster.WriteGeoTIFF(path, g) }

// FeatureLoader reads a vector file.
type FeatureLoader func(path string) (mask.FeatureSet, error)

type Notifier interface {
	SendErrorNotification(errorMessage string) error
	SendSuccessNotification(successMessage string, fields ...notification.DiscordEmbedField) error
}

// Pipeline runs the burn severity stages for one configuration. Every collaborator
// doing I/O is a field so stages can run against in-memory fakes.
type Pipeline struct {
	Config         *properties.Config
	Opener         sentinel.Opener
	Rasters        RasterStore
	LoadFeatures   FeatureLoader
	NewTransformer mask.TransformerFactory
	Notifier       Notifier

	// Quiet hides progress bars.
	Quiet bool
}

// New wires the production collaborators described by cfg.
func New(ctx context.Context, cfg *properties.Config) (*Pipeline, error) {
	opener, err := newOpener(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Config:         cfg,
		Opener:         opener,
		Rasters:        GeoTIFFStore{},
		LoadFeatures:   mask.ReadFeatures,
		NewTransformer: mask.GDALTransformer,
		Notifier:       notification.NewDiscord(cfg.DiscordErrorURL, cfg.DiscordSuccessURL),
	}, nil
}

func newOpener(ctx context.Context, cfg *properties.Config) (sentinel.Opener, error) {
	switch cfg.AssetSource {
	case properties.AssetSourceLocal:
		return sentinel.LocalSource{Dir: cfg.ImagesDir}, nil
	case properties.AssetSourceSTAC:
		var signer sentinel.Signer
		if cfg.STACSign == properties.SignPlanetary {
			signer = sentinel.NewPlanetarySigner(cfg.STACCollection)
		}
		hrefs := cache.NewFileCache[map[string]string](cfg.CacheDir(), 7*24*time.Hour)
		return sentinel.NewSTACSource(ctx, sentinel.STACConfig{
			BaseURL:      cfg.STACAPIURL,
			Collection:   cfg.STACCollection,
			ClientID:     cfg.STACClientID,
			ClientSecret: cfg.STACClientSecret,
			TokenURL:     cfg.STACTokenURL,
		}, signer, hrefs), nil
	default:
		return nil, fmt.Errorf("unknown asset source %q", cfg.AssetSource)
	}
}

func (p *Pipeline) progress(max int, description string) *progressbar.ProgressBar {
	if p.Quiet {
		return progressbar.DefaultSilent(int64(max), description)
	}
	return progressbar.Default(int64(max), description)
}

// RunAll runs every stage in order and reports the outcome.
func (p *Pipeline) RunAll(ctx context.Context) error {
	if _, err := p.ComputeBurnSeverity(ctx); err != nil {
		return p.fail(err)
	}
	if _, err := p.MaskBurnSeverity(ctx); err != nil {
		return p.fail(err)
	}
	if _, err := p.CalculateAreas(ctx); err != nil {
		return p.fail(err)
	}
	return nil
}

// Run runs a single stage by name, or every stage for "all".
func (p *Pipeline) Run(ctx context.Context, stage string) error {
	var err error
	switch stage {
	case StageSeverity:
		_, err = p.ComputeBurnSeverity(ctx)
	case StageMask:
		_, err = p.MaskBurnSeverity(ctx)
	case StageArea:
		_, err = p.CalculateAreas(ctx)
	case "all":
		return p.RunAll(ctx)
	default:
		return fmt.Errorf("unknown stage %q, expected %s, %s, %s or all", stage, StageSeverity, StageMask, StageArea)
	}
	if err != nil {
		return p.fail(err)
	}
	return nil
}

func (p *Pipeline) fail(err error) error {
	if p.Notifier != nil {
		if nerr := p.Notifier.SendErrorNotification(err.Error()); nerr != nil {
			return fmt.Errorf("%w (notification failed: %v)", err, nerr)
		}
	}
	return err
}
