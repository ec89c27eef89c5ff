package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shopscout/models"
	"shopscout/utils"
)

const rainforestEndpoint = "https://api.rainforestapi.com/request"

// Rainforest reports prices in major currency units.
type rainforestResponse struct {
	RequestInfo struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	} `json:"request_info"`
	SearchResults []rainforestItem `json:"search_results"`
}

type rainforestPrice struct {
	Value     *float64 `json:"value"`
	Raw       string   `json:"raw"`
	Name      string   `json:"name"`
	IsRRP     bool     `json:"is_rrp"`
	ListPrice *float64 `json:"list_price"`
}

type rainforestItem struct {
	ASIN         string            `json:"asin"`
	Title        string            `json:"title"`
	Link         string            `json:"link"`
	Image        string            `json:"image"`
	Brand        string            `json:"brand"`
	Rating       float64           `json:"rating"`
	RatingsTotal int               `json:"ratings_total"`
	Price        *rainforestPrice  `json:"price"`
	Prices       []rainforestPrice `json:"prices"`
	Availability struct {
		Raw string `json:"raw"`
	} `json:"availability"`
	IsPrime bool `json:"is_prime"`
}

// RainforestSource queries the Rainforest product data API for one Amazon
// regional marketplace.
type RainforestSource struct {
	sc       SourceContext
	apiKey   string
	endpoint string
	client   *http.Client
	retry    *utils.RetryConfig
	logger   *utils.Logger
	now      func() time.Time
}

// NewRainforestSource creates a source for the platform in sc. client may be
// nil; endpoint may be empty to use the public API.
func NewRainforestSource(sc SourceContext, apiKey, endpoint string, client *http.Client, retry *utils.RetryConfig, logger *utils.Logger) *RainforestSource {
	if endpoint == "" {
		endpoint = rainforestEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	return &RainforestSource{
		sc:       sc,
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   client,
		retry:    retry,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *RainforestSource) Name() string { return s.sc.Platform.ID }

func (s *RainforestSource) Search(ctx context.Context, q models.SearchQuery) (Batch, error) {
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("type", "search")
	params.Set("amazon_domain", s.sc.Platform.Domain)
	params.Set("search_term", q.RawQuery)
	params.Set("sort_by", rainforestSort(q.Filters.SortBy))
	params.Set("page", "1")
	requestURL := s.endpoint + "?" + params.Encode()

	var resp rainforestResponse
	err := doJSON(ctx, s.client, s.retry, "rainforest "+s.Name(), func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	}, &resp)
	if err != nil {
		return Batch{}, err
	}
	if !resp.RequestInfo.Success && resp.RequestInfo.Message != "" {
		return Batch{}, fmt.Errorf("rainforest: %s", resp.RequestInfo.Message)
	}

	fetchedAt := s.now()
	batch := Batch{Received: len(resp.SearchResults)}
	for _, item := range resp.SearchResults {
		listing, aerr := Normalize(s.toRaw(item), s.sc, fetchedAt)
		if aerr != nil {
			s.logger.Debug("[%s] %v", s.Name(), aerr)
			batch.Dropped = append(batch.Dropped, aerr)
			continue
		}
		batch.Listings = append(batch.Listings, listing)
	}

	s.logger.Debug("[%s] %d results, %d normalized", s.Name(), batch.Received, len(batch.Listings))
	return batch, nil
}

func (s *RainforestSource) toRaw(item rainforestItem) RawItem {
	raw := RawItem{
		ID:               item.ASIN,
		Title:            item.Title,
		Brand:            item.Brand,
		Rating:           item.Rating,
		ReviewCount:      item.RatingsTotal,
		AvailabilityText: item.Availability.Raw,
		URL:              item.Link,
		FreeShipping:     item.IsPrime,
	}
	if raw.URL == "" && item.ASIN != "" {
		raw.URL = "https://" + s.sc.Platform.Domain + "/dp/" + item.ASIN
	}
	if item.Image != "" {
		raw.Images = []string{item.Image}
	}

	if item.Price != nil && item.Price.Value != nil {
		raw.Price = item.Price.Value
		raw.OriginalPrice = item.Price.ListPrice
	}
	for _, p := range item.Prices {
		if p.Value == nil {
			continue
		}
		switch {
		case p.IsRRP || strings.EqualFold(p.Name, "List Price"):
			if raw.OriginalPrice == nil {
				raw.OriginalPrice = p.Value
			}
		case raw.Price == nil:
			raw.Price = p.Value
		}
	}

	if item.IsPrime {
		raw.EstimatedDays = "1-2 days"
	} else {
		raw.EstimatedDays = "3-5 days"
	}
	return raw
}

func rainforestSort(sortBy models.SortBy) string {
	switch sortBy {
	case models.SortPriceLow:
		return "price_low_to_high"
	case models.SortPriceHigh:
		return "price_high_to_low"
	case models.SortRating, models.SortReviews:
		return "average_review"
	case models.SortNewest:
		return "most_recent"
	default:
		return "featured"
	}
}
