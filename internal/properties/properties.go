package properties

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/forest-guardian/burn-severity-cli/internal/raster"
)

const (
	AssetSourceLocal = "local"
	AssetSourceSTAC  = "stac"

	SignPlanetary = "planetary"
	SignNone      = "none"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

// Config holds everything one burn severity run needs. It is built once by Load
// and passed down to the pipeline.
type Config struct {
	RootPath string

	PreFireItem  string
	PostFireItem string
	FireStart    time.Time
	FireEnd      time.Time

	// Bounds of the region of interest, expressed in BoundsCRS. An empty BoundsCRS
	// means the CRS of the scenes.
	Bounds    raster.Bounds
	BoundsCRS string

	NIRBand          string
	SWIRBand         string
	TargetResolution float64

	AssetSource string
	ImagesDir   string

	STACAPIURL       string
	STACCollection   string
	STACSign         string
	STACClientID     string
	STACClientSecret string
	STACTokenURL     string

	BoundaryPath      string
	BoundaryAttribute string
	BoundaryValues    []string
	WaterPath         string
	WaterAttribute    string
	WaterValues       []string

	BurnSeverityPath       string
	MaskedBurnSeverityPath string
	AreaReportPath         string
	SeverityTablePath      string

	LogLevel string

	DiscordErrorURL   string
	DiscordSuccessURL string
}

// CacheDir is where fetched catalog items are kept between runs.
func (c *Config) CacheDir() string {
	return filepath.Join(c.RootPath, "data", "cache", "stac")
}

// Load reads the configuration from the environment, applying defaults for the
// 2023 Barrington Lake fire in Shelburne County, Nova Scotia.
func Load() (*Config, error) {
	root := RootPath()
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	data := filepath.Join(root, "data")

	cfg := &Config{
		RootPath:          root,
		PreFireItem:       getEnv("PRE_FIRE_ITEM", "S2B_MSIL2A_20230518T151659_R025_T19TGJ_20230518T234549"),
		PostFireItem:      getEnv("POST_FIRE_ITEM", "S2B_MSIL2A_20230806T151659_R025_T19TGJ_20230806T211758"),
		BoundsCRS:         getEnv("BOUNDS_CRS", "EPSG:32619"),
		NIRBand:           getEnv("NIR_BAND", "B08"),
		SWIRBand:          getEnv("SWIR_BAND", "B12"),
		AssetSource:       strings.ToLower(getEnv("ASSET_SOURCE", AssetSourceSTAC)),
		ImagesDir:         getEnv("IMAGES_DIR", filepath.Join(data, "images")),
		STACAPIURL:        getEnv("STAC_API_URL", "https://planetarycomputer.microsoft.com/api/stac/v1"),
		STACCollection:    getEnv("STAC_COLLECTION", "sentinel-2-l2a"),
		STACSign:          strings.ToLower(getEnv("STAC_SIGN", SignPlanetary)),
		STACClientID:      os.Getenv("STAC_CLIENT_ID"),
		STACClientSecret:  os.Getenv("STAC_CLIENT_SECRET"),
		STACTokenURL:      os.Getenv("STAC_TOKEN_URL"),
		BoundaryPath:      getEnv("BOUNDARY_PATH", filepath.Join(data, "county", "County_Polygons.shp")),
		BoundaryAttribute: getEnv("BOUNDARY_ATTRIBUTE", "NAME"),
		BoundaryValues:    getList("BOUNDARY_VALUES", "Shelburne"),
		WaterPath:         getEnv("WATER_PATH", filepath.Join(data, "water", "WA_POLY_10K.shp")),
		WaterAttribute:    getEnv("WATER_ATTRIBUTE", "FEAT_DESC"),
		WaterValues:       getList("WATER_VALUES", "Lake Water polygon,Coast River Water polygon"),

		BurnSeverityPath:       getEnv("BURN_SEVERITY_PATH", filepath.Join(data, "output", "burn_severity.tif")),
		MaskedBurnSeverityPath: getEnv("MASKED_BURN_SEVERITY_PATH", filepath.Join(data, "output", "masked_burn_severity.tif")),
		AreaReportPath:         getEnv("AREA_REPORT_PATH", filepath.Join(data, "output", "burn_severity_areas.csv")),
		SeverityTablePath:      os.Getenv("SEVERITY_TABLE_PATH"),

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DiscordErrorURL:   DiscordErrorNotificationUrl(),
		DiscordSuccessURL: DiscordSuccessNotificationUrl(),
	}

	var err error
	if cfg.FireStart, err = getDate("FIRE_START_DATE", "2023-05-24"); err != nil {
		return nil, err
	}
	if cfg.FireEnd, err = getDate("FIRE_END_DATE", "2023-07-30"); err != nil {
		return nil, err
	}
	if cfg.Bounds, err = ParseBounds(getEnv("BOUNDS", "767760,4827590,801670,4847040")); err != nil {
		return nil, err
	}
	if cfg.TargetResolution, err = strconv.ParseFloat(getEnv("TARGET_RESOLUTION", "10"), 64); err != nil {
		return nil, fmt.Errorf("invalid TARGET_RESOLUTION: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.PreFireItem == "" || c.PostFireItem == "":
		return fmt.Errorf("PRE_FIRE_ITEM and POST_FIRE_ITEM are required")
	case c.PreFireItem == c.PostFireItem:
		return fmt.Errorf("pre-fire and post-fire items must differ")
	case c.FireEnd.Before(c.FireStart):
		return fmt.Errorf("FIRE_END_DATE %s is before FIRE_START_DATE %s", c.FireEnd.Format(time.DateOnly), c.FireStart.Format(time.DateOnly))
	case c.TargetResolution <= 0:
		return fmt.Errorf("TARGET_RESOLUTION must be positive, got %g", c.TargetResolution)
	case c.NIRBand == "" || c.SWIRBand == "":
		return fmt.Errorf("NIR_BAND and SWIR_BAND are required")
	case c.BoundaryAttribute == "" || len(c.BoundaryValues) == 0:
		return fmt.Errorf("BOUNDARY_ATTRIBUTE and BOUNDARY_VALUES are required")
	case c.WaterAttribute == "" || len(c.WaterValues) == 0:
		return fmt.Errorf("WATER_ATTRIBUTE and WATER_VALUES are required")
	}

	switch c.AssetSource {
	case AssetSourceLocal:
		if c.ImagesDir == "" {
			return fmt.Errorf("IMAGES_DIR is required for local assets")
		}
	case AssetSourceSTAC:
		if c.STACAPIURL == "" || c.STACCollection == "" {
			return fmt.Errorf("STAC_API_URL and STAC_COLLECTION are required for stac assets")
		}
		if c.STACSign != SignPlanetary && c.STACSign != SignNone {
			return fmt.Errorf("unknown STAC_SIGN %q, expected %s or %s", c.STACSign, SignPlanetary, SignNone)
		}
	default:
		return fmt.Errorf("unknown ASSET_SOURCE %q, expected %s or %s", c.AssetSource, AssetSourceLocal, AssetSourceSTAC)
	}
	return nil
}

// ParseBounds parses "minx,miny,maxx,maxy".
func ParseBounds(s string) (raster.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return raster.Bounds{}, fmt.Errorf("invalid bounds %q, expected minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return raster.Bounds{}, fmt.Errorf("invalid bounds %q: %w", s, err)
		}
		v[i] = f
	}
	b := raster.Bounds{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	if !b.Valid() {
		return raster.Bounds{}, fmt.Errorf("invalid bounds %q, min must be below max", s)
	}
	return b, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getList(key, fallback string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, fallback), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getDate(key, fallback string) (time.Time, error) {
	v := getEnv(key, fallback)
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD: %w", key, v, err)
	}
	return t, nil
}
