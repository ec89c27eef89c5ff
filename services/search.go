package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"shopscout/models"
	"shopscout/sources"
)

// SourceProvider resolves a country code to its locale and enabled sources.
type SourceProvider interface {
	Sources(countryCode string) (models.Locale, []sources.Source, error)
}

// EngineConfig holds request defaults and limits.
type EngineConfig struct {
	DefaultCountry  string
	MinQueryLength  int
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultEngineConfig returns the stock limits.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultCountry:  "EG",
		MinQueryLength:  2,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// Engine is the search entry point: validate, fetch, score, filter, sort,
// paginate. It keeps no state between calls.
type Engine struct {
	cfg          EngineConfig
	provider     SourceProvider
	orchestrator *Orchestrator
	facets       *FacetService
	newID        func() string
	now          func() time.Time
}

// NewEngine wires an Engine.
func NewEngine(cfg EngineConfig, provider SourceProvider, orchestrator *Orchestrator, facets *FacetService) *Engine {
	if cfg.MinQueryLength < 1 {
		cfg.MinQueryLength = 1
	}
	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &Engine{
		cfg:          cfg,
		provider:     provider,
		orchestrator: orchestrator,
		facets:       facets,
		newID:        func() string { return uuid.NewString() },
		now:          time.Now,
	}
}

type validRequest struct {
	query    models.SearchQuery
	page     int
	pageSize int
}

// Search runs one complete search. Validation failures return a
// *ValidationError before any source is contacted. Per-source failures are
// reported in the result's Errors and do not fail the call.
func (e *Engine) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	vr, err := e.validate(req)
	if err != nil {
		return nil, err
	}
	q := vr.query

	locale, srcs, err := e.provider.Sources(q.CountryCode)
	if err != nil {
		if errors.Is(err, sources.ErrUnknownCountry) {
			return nil, invalid("country", "%q is not supported", q.CountryCode)
		}
		return nil, fmt.Errorf("resolve sources: %w", err)
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoSources, q.CountryCode)
	}

	start := e.now()
	outcome, err := e.orchestrator.FetchAll(ctx, q, srcs)
	if err != nil {
		return nil, err
	}

	scored, err := ScoreBatch(outcome.Listings, q.RawQuery)
	if err != nil {
		return nil, err
	}
	ordered := ApplyFilters(scored, q.Filters)

	result := Assemble(ordered, vr.page, vr.pageSize)
	result.SearchID = e.newID()
	result.Query = q.RawQuery
	result.CountryCode = locale.CountryCode
	result.SourcesQueried = outcome.SourcesQueried
	result.Errors = outcome.Errors
	if outcome.AllFailed() {
		result.Errors = append(result.Errors, models.SourceError{
			Source:  "*",
			Kind:    models.ErrorKindAllFailed,
			Message: "every source failed; no listings could be fetched",
		})
	} else if len(scored) > 0 && len(ordered) == 0 {
		result.Errors = append(result.Errors, models.SourceError{
			Source:  "filters",
			Kind:    models.ErrorKindNoMatch,
			Message: fmt.Sprintf("none of %d listings matched the filters", len(scored)),
		})
	}
	result.Facets = e.facets.Generate(scored)
	result.Suggestions = Suggestions(q.RawQuery)
	result.ElapsedMs = e.now().Sub(start).Milliseconds()

	return &result, nil
}

func (e *Engine) validate(req models.SearchRequest) (validRequest, error) {
	text := strings.Join(strings.Fields(req.Text), " ")
	if text == "" {
		return validRequest{}, invalid("query", "must not be empty")
	}
	if n := utf8.RuneCountInString(text); n < e.cfg.MinQueryLength {
		return validRequest{}, invalid("query", "must be at least %d characters", e.cfg.MinQueryLength)
	}

	country := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if country == "" {
		country = e.cfg.DefaultCountry
	}

	f := req.Filters
	for _, v := range []struct {
		field string
		value float64
	}{
		{"priceRange", f.PriceRange.Min},
		{"priceRange", f.PriceRange.Max},
		{"minRating", f.MinRating},
	} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return validRequest{}, invalid(v.field, "must be a finite number")
		}
	}
	switch {
	case f.PriceRange.Min < 0:
		return validRequest{}, invalid("priceRange", "min must not be negative")
	case f.PriceRange.Max < 0:
		return validRequest{}, invalid("priceRange", "max must not be negative")
	case f.PriceRange.Max > 0 && f.PriceRange.Min > f.PriceRange.Max:
		return validRequest{}, invalid("priceRange", "min %.2f is greater than max %.2f", f.PriceRange.Min, f.PriceRange.Max)
	case f.MinRating < 0 || f.MinRating > 5:
		return validRequest{}, invalid("minRating", "must be between 0 and 5")
	case !models.IsValidSort(f.SortBy):
		return validRequest{}, invalid("sortBy", "unknown sort %q", f.SortBy)
	}
	if f.SortBy == "" {
		f.SortBy = models.SortRelevance
	}
	f.Category = strings.TrimSpace(f.Category)
	f.Brand = strings.TrimSpace(f.Brand)

	page := req.Page
	switch {
	case page < 0:
		return validRequest{}, invalid("page", "must be positive")
	case page == 0:
		page = 1
	}

	size := req.PageSize
	switch {
	case size < 0:
		return validRequest{}, invalid("pageSize", "must be positive")
	case size == 0:
		size = e.cfg.DefaultPageSize
	case size > e.cfg.MaxPageSize:
		size = e.cfg.MaxPageSize
	}
	if page > math.MaxInt/size {
		return validRequest{}, invalid("page", "must be at most %d", math.MaxInt/size)
	}

	return validRequest{
		query:    models.SearchQuery{RawQuery: text, CountryCode: country, Filters: f},
		page:     page,
		pageSize: size,
	}, nil
}

// Suggestions returns follow-up queries for q.
func Suggestions(q string) []string {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []string{}
	}
	return []string{
		q + " deals",
		q + " review",
		"best " + q,
		q + " price",
	}
}
