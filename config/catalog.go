package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"shopscout/models"
)

// Adapter names understood by the source registry.
const (
	AdapterRainforest  = "rainforest"
	AdapterPAAPI       = "paapi"
	AdapterMarketplace = "marketplace"
)

// PlatformConfig is one marketplace enabled for a country.
type PlatformConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Domain  string `yaml:"domain"`
	Adapter string `yaml:"adapter"`
	// Kind selects the HTML selector set for marketplace adapters
	// (amazon, noon, jumia, walmart, argos).
	Kind   string `yaml:"kind"`
	Render bool   `yaml:"render"`
}

// CountryConfig is one locale record with its enabled platforms.
type CountryConfig struct {
	models.Locale `yaml:",inline"`
	Platforms     []PlatformConfig `yaml:"platforms"`
}

// Catalog is the locale/platform table consumed by the search core.
type Catalog struct {
	Countries []CountryConfig `yaml:"countries"`
}

// LoadCatalog loads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}

	return &cat, nil
}

// LoadCatalogOrDefault loads path when set, otherwise the built-in catalog.
func LoadCatalogOrDefault(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	return LoadCatalog(path)
}

// Country returns the record for an ISO alpha-2 code. "UK" is accepted as
// an alias of "GB".
func (c *Catalog) Country(code string) (CountryConfig, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "UK" {
		normalized = "GB"
	}
	for _, country := range c.Countries {
		if country.CountryCode == normalized {
			return country, true
		}
	}
	return CountryConfig{}, false
}

// Codes returns the configured country codes in catalog order.
func (c *Catalog) Codes() []string {
	codes := make([]string, 0, len(c.Countries))
	for _, country := range c.Countries {
		codes = append(codes, country.CountryCode)
	}
	return codes
}

func (c *Catalog) validate() error {
	if len(c.Countries) == 0 {
		return fmt.Errorf("catalog: no countries defined")
	}
	seen := make(map[string]struct{})
	for i := range c.Countries {
		country := &c.Countries[i]
		country.CountryCode = strings.ToUpper(strings.TrimSpace(country.CountryCode))
		if country.CountryCode == "" {
			return fmt.Errorf("catalog: country %d has no code", i)
		}
		if _, dup := seen[country.CountryCode]; dup {
			return fmt.Errorf("catalog: duplicate country %s", country.CountryCode)
		}
		seen[country.CountryCode] = struct{}{}
		if country.Currency == "" {
			return fmt.Errorf("catalog: country %s has no currency", country.CountryCode)
		}
		for _, p := range country.Platforms {
			switch p.Adapter {
			case AdapterRainforest, AdapterPAAPI, AdapterMarketplace:
			default:
				return fmt.Errorf("catalog: platform %s has unknown adapter %q", p.ID, p.Adapter)
			}
			if p.Domain == "" {
				return fmt.Errorf("catalog: platform %s has no domain", p.ID)
			}
		}
	}
	return nil
}

// DefaultCatalog returns the built-in catalog used when CATALOG_PATH is unset.
func DefaultCatalog() *Catalog {
	return &Catalog{Countries: []CountryConfig{
		{
			Locale: models.Locale{CountryCode: "EG", CountryName: "Egypt", Currency: "EGP", CurrencySymbol: "ج.م"},
			Platforms: []PlatformConfig{
				{ID: "amazon_eg", Name: "Amazon Egypt", Domain: "amazon.eg", Adapter: AdapterRainforest},
				{ID: "noon_eg", Name: "Noon Egypt", Domain: "noon.com", Adapter: AdapterMarketplace, Kind: "noon", Render: true},
				{ID: "jumia_eg", Name: "Jumia Egypt", Domain: "jumia.com.eg", Adapter: AdapterMarketplace, Kind: "jumia"},
			},
		},
		{
			Locale: models.Locale{CountryCode: "AE", CountryName: "United Arab Emirates", Currency: "AED", CurrencySymbol: "د.إ"},
			Platforms: []PlatformConfig{
				{ID: "amazon_ae", Name: "Amazon UAE", Domain: "amazon.ae", Adapter: AdapterRainforest},
				{ID: "noon_ae", Name: "Noon UAE", Domain: "noon.com", Adapter: AdapterMarketplace, Kind: "noon", Render: true},
			},
		},
		{
			Locale: models.Locale{CountryCode: "SA", CountryName: "Saudi Arabia", Currency: "SAR", CurrencySymbol: "ر.س"},
			Platforms: []PlatformConfig{
				{ID: "amazon_sa", Name: "Amazon Saudi Arabia", Domain: "amazon.sa", Adapter: AdapterRainforest},
				{ID: "noon_sa", Name: "Noon Saudi", Domain: "noon.com", Adapter: AdapterMarketplace, Kind: "noon", Render: true},
			},
		},
		{
			Locale: models.Locale{CountryCode: "US", CountryName: "United States", Currency: "USD", CurrencySymbol: "$"},
			Platforms: []PlatformConfig{
				{ID: "amazon_us", Name: "Amazon US", Domain: "amazon.com", Adapter: AdapterPAAPI},
				{ID: "walmart_us", Name: "Walmart US", Domain: "walmart.com", Adapter: AdapterMarketplace, Kind: "walmart", Render: true},
			},
		},
		{
			Locale: models.Locale{CountryCode: "GB", CountryName: "United Kingdom", Currency: "GBP", CurrencySymbol: "£"},
			Platforms: []PlatformConfig{
				{ID: "amazon_uk", Name: "Amazon UK", Domain: "amazon.co.uk", Adapter: AdapterRainforest},
				{ID: "argos_uk", Name: "Argos UK", Domain: "argos.co.uk", Adapter: AdapterMarketplace, Kind: "argos"},
			},
		},
	}}
}
