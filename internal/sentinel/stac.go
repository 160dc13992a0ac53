package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/forest-guardian/burn-severity-cli/internal/cache"
)

// PlanetaryTokenURL is the Planetary Computer SAS token endpoint; the collection id
// is appended to it.
const PlanetaryTokenURL = "https://planetarycomputer.microsoft.com/api/sas/v1/token"

// Signer turns an asset href into one GDAL can fetch.
type Signer interface {
	Sign(ctx context.Context, href string) (string, error)
}

// STACConfig describes a STAC API and how to authenticate with it.
type STACConfig struct {
	BaseURL    string
	Collection string

	// OAuth2 client credentials; all three must be set to enable authentication.
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// STACSource opens band assets of items fetched by id from a STAC API. Items are
// never searched; the caller knows which scenes to compare.
type STACSource struct {
	BaseURL    string
	Collection string
	Client     *http.Client
	Signer     Signer
	Cache      cache.CacheService[map[string]string]

	// open is replaced in tests.
	open func(name string) (BandReader, error)
}

func NewSTACSource(ctx context.Context, cfg STACConfig, signer Signer, hrefs cache.CacheService[map[string]string]) *STACSource {
	client := &http.Client{Timeout: time.Minute}
	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TokenURL != "" {
		config := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = config.Client(ctx)
	}
	return &STACSource{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Collection: cfg.Collection,
		Client:     client,
		Signer:     signer,
		Cache:      hrefs,
		open:       OpenGDAL,
	}
}

type stacItem struct {
	ID     string `json:"id"`
	Assets map[string]struct {
		Href string `json:"href"`
	} `json:"assets"`
}

// Href returns the signed href of band in item itemID.
func (s *STACSource) Href(ctx context.Context, itemID, band string) (string, error) {
	assets, err := s.assets(ctx, itemID, band)
	if err != nil {
		return "", err
	}
	href, ok := assets[band]
	if !ok || href == "" {
		return "", &MissingAssetError{ItemID: itemID, Band: band}
	}
	if s.Signer == nil {
		return href, nil
	}
	signed, err := s.Signer.Sign(ctx, href)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s/%s: %w", itemID, band, err)
	}
	return signed, nil
}

func (s *STACSource) Open(ctx context.Context, itemID, band string) (BandReader, error) {
	href, err := s.Href(ctx, itemID, band)
	if err != nil {
		return nil, err
	}
	open := s.open
	if open == nil {
		open = OpenGDAL
	}
	return open(vsicurl(href))
}

func (s *STACSource) assets(ctx context.Context, itemID, band string) (map[string]string, error) {
	var key string
	if s.Cache != nil {
		key = s.Cache.GenerateKey(s.BaseURL, s.Collection, itemID)
		if assets, ok := s.Cache.Get(key); ok {
			slog.Debug("stac item loaded from cache", "item", itemID)
			return assets, nil
		}
	}

	itemURL := fmt.Sprintf("%s/collections/%s/items/%s", s.BaseURL, url.PathEscape(s.Collection), url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, itemURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create item request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &MissingAssetError{ItemID: itemID, Band: band, Err: fmt.Errorf("item not found in %s", s.Collection)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to fetch item %s: status %d: %s", itemID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var item stacItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode item %s: %w", itemID, err)
	}

	assets := make(map[string]string, len(item.Assets))
	for name, asset := range item.Assets {
		assets[name] = asset.Href
	}

	if s.Cache != nil {
		if err := s.Cache.Set(key, assets); err != nil {
			slog.Warn("failed to cache stac item", "item", itemID, "error", err)
		}
	}
	return assets, nil
}

func vsicurl(href string) string {
	if strings.HasPrefix(href, "/vsi") {
		return href
	}
	return "/vsicurl/" + href
}

// PlanetarySigner appends Planetary Computer SAS tokens to blob storage hrefs. The
// token of the collection is fetched once and reused until shortly before it expires.
type PlanetarySigner struct {
	Collection string
	TokenURL   string
	Client     *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
	now    func() time.Time
}

func NewPlanetarySigner(collection string) *PlanetarySigner {
	return &PlanetarySigner{
		Collection: collection,
		TokenURL:   PlanetaryTokenURL,
		Client:     &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

type sasToken struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"msft:expiry"`
}

func (p *PlanetarySigner) Sign(ctx context.Context, href string) (string, error) {
	token, err := p.currentToken(ctx)
	if err != nil {
		return "", err
	}
	if strings.Contains(href, "?") {
		return href + "&" + token, nil
	}
	return href + "?" + token, nil
}

func (p *PlanetarySigner) currentToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	if p.token != "" && now().Add(5*time.Minute).Before(p.expiry) {
		return p.token, nil
	}

	tokenURL := fmt.Sprintf("%s/%s", strings.TrimRight(p.TokenURL, "/"), url.PathEscape(p.Collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request sas token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to request sas token: status %d", resp.StatusCode)
	}

	var tok sasToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode sas token: %w", err)
	}
	if tok.Token == "" {
		return "", fmt.Errorf("empty sas token for collection %s", p.Collection)
	}
	p.token, p.expiry = tok.Token, tok.Expiry
	return p.token, nil
}
