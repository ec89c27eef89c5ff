package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopscout/models"
	"shopscout/utils"
)

const rainforestFixture = `{
  "request_info": {"success": true},
  "search_results": [
    {
      "asin": "B0CHX1W1XY",
      "title": "Apple iPhone 15 (128 GB) - Black",
      "link": "https://www.amazon.eg/dp/B0CHX1W1XY",
      "image": "https://m.media-amazon.com/images/I/71d7rfSl0wL.jpg",
      "rating": 4.6,
      "ratings_total": 1532,
      "price": {"value": 42999.0, "raw": "EGP 42,999.00", "list_price": 47999.0},
      "availability": {"raw": "Only 2 left in stock."},
      "is_prime": true
    },
    {
      "asin": "B0CMZ6D3F2",
      "title": "Samsung Galaxy S24 256GB",
      "rating": 4.3,
      "ratings_total": 87,
      "prices": [
        {"value": 38999.0, "raw": "EGP 38,999.00"},
        {"value": 41999.0, "raw": "EGP 41,999.00", "name": "List Price", "is_rrp": true}
      ]
    },
    {
      "asin": "B0BROKEN01",
      "title": "Listing with no price"
    }
  ]
}`

func newTestRainforest(t *testing.T, handler http.HandlerFunc) *RainforestSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRainforestSource(egyptContext(), "test-key", srv.URL, srv.Client(),
		&utils.RetryConfig{MaxAttempts: 1}, utils.NewNopLogger())
}

func TestRainforestSearchNormalizesItems(t *testing.T) {
	var gotQuery map[string]string
	src := newTestRainforest(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"api_key":       q.Get("api_key"),
			"type":          q.Get("type"),
			"amazon_domain": q.Get("amazon_domain"),
			"search_term":   q.Get("search_term"),
			"sort_by":       q.Get("sort_by"),
		}
		fmt.Fprint(w, rainforestFixture)
	})

	batch, err := src.Search(context.Background(), models.SearchQuery{
		RawQuery: "iphone 15", CountryCode: "EG",
		Filters: models.Filters{SortBy: models.SortPriceLow},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := map[string]string{
		"api_key": "test-key", "type": "search", "amazon_domain": "amazon.eg",
		"search_term": "iphone 15", "sort_by": "price_low_to_high",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query param %s = %q; want %q", k, gotQuery[k], v)
		}
	}

	if batch.Received != 3 {
		t.Errorf("Received: got %d, want 3", batch.Received)
	}
	if len(batch.Listings) != 2 {
		t.Fatalf("Listings: got %d, want 2", len(batch.Listings))
	}
	if len(batch.Dropped) != 1 || batch.Dropped[0].ItemID != "B0BROKEN01" {
		t.Errorf("Dropped: got %v", batch.Dropped)
	}

	iphone := batch.Listings[0]
	if iphone.Price != 42999 {
		t.Errorf("price must stay in major units, got %.2f", iphone.Price)
	}
	if iphone.Discount != "10%" {
		t.Errorf("Discount: got %q, want 10%%", iphone.Discount)
	}
	if iphone.Availability != models.LimitedStock {
		t.Errorf("Availability: got %s", iphone.Availability)
	}
	if !iphone.Shipping.Free || iphone.Shipping.EstimatedDays != "1-2 days" {
		t.Errorf("Shipping: got %+v", iphone.Shipping)
	}
	if iphone.ReviewCount != 1532 || iphone.Rating != 4.6 {
		t.Errorf("rating/reviews: got %.1f/%d", iphone.Rating, iphone.ReviewCount)
	}

	galaxy := batch.Listings[1]
	if galaxy.Price != 38999 {
		t.Errorf("fallback price: got %.2f, want 38999", galaxy.Price)
	}
	if galaxy.OriginalPrice == nil || *galaxy.OriginalPrice != 41999 {
		t.Errorf("rrp original price: got %v", galaxy.OriginalPrice)
	}
	if galaxy.URL != "https://amazon.eg/dp/B0CMZ6D3F2" {
		t.Errorf("derived URL: got %q", galaxy.URL)
	}
	if galaxy.Shipping.EstimatedDays != "3-5 days" {
		t.Errorf("EstimatedDays: got %q", galaxy.Shipping.EstimatedDays)
	}
	if galaxy.Brand != "Samsung" {
		t.Errorf("Brand: got %q", galaxy.Brand)
	}
}

func TestRainforestSearchReportsHTTPError(t *testing.T) {
	src := newTestRainforest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"request_info":{"success":false,"message":"Invalid API key"}}`)
	})

	if _, err := src.Search(context.Background(), models.SearchQuery{RawQuery: "tv"}); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestRainforestSearchReportsAPIFailure(t *testing.T) {
	src := newTestRainforest(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"request_info":{"success":false,"message":"credits exhausted"}}`)
	})

	if _, err := src.Search(context.Background(), models.SearchQuery{RawQuery: "tv"}); err == nil {
		t.Fatal("expected error when request_info.success is false")
	}
}

func TestRainforestSearchEmptyResults(t *testing.T) {
	src := newTestRainforest(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"request_info":{"success":true},"search_results":[]}`)
	})

	batch, err := src.Search(context.Background(), models.SearchQuery{RawQuery: "tv"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if batch.Received != 0 || len(batch.Listings) != 0 || batch.AllDropped() {
		t.Errorf("unexpected batch: %+v", batch)
	}
}

func TestRainforestSearchHonoursCancel(t *testing.T) {
	src := newTestRainforest(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := src.Search(ctx, models.SearchQuery{RawQuery: "tv"}); err == nil {
		t.Fatal("expected error after deadline")
	}
}
