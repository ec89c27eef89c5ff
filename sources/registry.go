package sources

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"shopscout/config"
	"shopscout/fetcher"
	"shopscout/models"
	"shopscout/utils"
)

// ErrUnknownCountry is returned for a country code missing from the catalog.
var ErrUnknownCountry = errors.New("unknown country")

// Registry builds the production sources for a country from the catalog.
// Sources whose credentials are missing are skipped with a warning.
type Registry struct {
	catalog *config.Catalog
	cfg     *config.Config
	client  *http.Client
	static  fetcher.PageFetcher
	browser fetcher.PageFetcher
	logger  *utils.Logger
}

// NewRegistry creates a Registry. browser may be nil, in which case render
// platforms are fetched as static HTML.
func NewRegistry(catalog *config.Catalog, cfg *config.Config, static, browser fetcher.PageFetcher, logger *utils.Logger) *Registry {
	return &Registry{
		catalog: catalog,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.SourceTimeout() + 5*time.Second},
		static:  static,
		browser: browser,
		logger:  logger,
	}
}

// Sources returns the locale record and the enabled sources for a country,
// in catalog order.
func (r *Registry) Sources(countryCode string) (models.Locale, []Source, error) {
	country, ok := r.catalog.Country(countryCode)
	if !ok {
		return models.Locale{}, nil, fmt.Errorf("%w: %q", ErrUnknownCountry, countryCode)
	}

	retry := &utils.RetryConfig{
		MaxAttempts: r.cfg.MaxRetries + 1,
		BaseDelay:   time.Second,
		Logger:      r.logger,
	}

	var out []Source
	for _, p := range country.Platforms {
		sc := SourceContext{
			Locale:   country.Locale,
			Platform: models.Platform{ID: p.ID, Name: p.Name, Domain: p.Domain},
		}

		src, err := r.build(p, sc, retry)
		if err != nil {
			r.logger.Warn("[registry] Skipping %s: %v", p.ID, err)
			continue
		}
		out = append(out, src)
	}
	return country.Locale, out, nil
}

func (r *Registry) build(p config.PlatformConfig, sc SourceContext, retry *utils.RetryConfig) (Source, error) {
	switch p.Adapter {
	case config.AdapterRainforest:
		if r.cfg.RainforestAPIKey == "" {
			return nil, errors.New("RAINFOREST_API_KEY not set")
		}
		return NewRainforestSource(sc, r.cfg.RainforestAPIKey, "", r.client, retry, r.logger), nil

	case config.AdapterPAAPI:
		if r.cfg.PAAPIAccessKey == "" || r.cfg.PAAPISecretKey == "" || r.cfg.PAAPIPartnerTag == "" {
			return nil, errors.New("PA-API credentials not set")
		}
		return NewPAAPISource(sc, PAAPICredentials{
			AccessKey:  r.cfg.PAAPIAccessKey,
			SecretKey:  r.cfg.PAAPISecretKey,
			PartnerTag: r.cfg.PAAPIPartnerTag,
		}, "", r.client, retry, r.logger)

	case config.AdapterMarketplace:
		pf := r.static
		if p.Render && r.browser != nil {
			pf = r.browser
		}
		if pf == nil {
			return nil, errors.New("no page fetcher configured")
		}
		return NewMarketplaceSource(sc, p.Kind, pf, r.logger)

	default:
		return nil, fmt.Errorf("unknown adapter %q", p.Adapter)
	}
}
