package services

import (
	"math"
	"testing"
	"time"

	"shopscout/models"
	"shopscout/sources/sourcetest"
)

func scoredFixture() []models.ScoredListing {
	mk := func(id, title, brand, category string, price, rating float64, reviews int, avail models.Availability, overall float64, age time.Duration) models.ScoredListing {
		l := sourcetest.Listing(amazonUS, id, title, price)
		l.Brand = brand
		l.Category = category
		l.Rating = rating
		l.ReviewCount = reviews
		l.Availability = avail
		l.FetchedAt = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Add(-age)
		return models.ScoredListing{NormalizedListing: l, OverallScore: overall}
	}
	return []models.ScoredListing{
		mk("A", "Apple iPhone 15", "Apple", "Smartphones", 999, 4.6, 1500, models.InStock, 80, 3*time.Minute),
		mk("B", "Samsung Galaxy S24", "Samsung", "Smartphones", 899, 4.3, 800, models.LimitedStock, 72, time.Minute),
		mk("C", "Sony WH-1000XM5", "Sony", "Audio", 329, 4.7, 12000, models.InStock, 72, 2*time.Minute),
		mk("D", "Generic USB-C cable", "", "", 9.99, 3.2, 40, models.OutOfStock, 41, 0),
		mk("E", "Apple AirPods Pro", "Apple", "Audio", 249, 4.6, 9000, models.InStock, 77, 5*time.Minute),
	}
}

func ids(ls []models.ScoredListing) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.ID[len("amazon_us:"):]
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestApplyFiltersPredicates(t *testing.T) {
	tests := []struct {
		name    string
		filters models.Filters
		want    []string
	}{
		{"no filters sorts by overall, ties stable", models.Filters{}, []string{"A", "E", "B", "C", "D"}},
		{"price range inclusive", models.Filters{PriceRange: models.PriceRange{Min: 249, Max: 899}}, []string{"E", "B", "C"}},
		{"open upper bound", models.Filters{PriceRange: models.PriceRange{Min: 300}}, []string{"A", "B", "C"}},
		{"min rating", models.Filters{MinRating: 4.6}, []string{"A", "E", "C"}},
		{"in stock only", models.Filters{InStockOnly: true}, []string{"A", "E", "C"}},
		{"category substring", models.Filters{Category: "phone"}, []string{"A", "B"}},
		{"category reverse substring", models.Filters{Category: "Premium Audio Gear"}, []string{"E", "C"}},
		{"brand case-insensitive", models.Filters{Brand: "apple"}, []string{"A", "E"}},
		{"empty field never matches", models.Filters{Brand: "generic"}, []string{}},
	}

	for _, tt := range tests {
		got := ids(ApplyFilters(scoredFixture(), tt.filters))
		if !equalIDs(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestApplyFiltersSortOrders(t *testing.T) {
	tests := []struct {
		sortBy models.SortBy
		want   []string
	}{
		{models.SortRelevance, []string{"A", "E", "B", "C", "D"}},
		{models.SortPriceLow, []string{"D", "E", "C", "B", "A"}},
		{models.SortPriceHigh, []string{"A", "B", "C", "E", "D"}},
		{models.SortRating, []string{"C", "A", "E", "B", "D"}},
		{models.SortReviews, []string{"C", "E", "A", "B", "D"}},
		{models.SortNewest, []string{"D", "B", "C", "A", "E"}},
	}

	for _, tt := range tests {
		got := ids(ApplyFilters(scoredFixture(), models.Filters{SortBy: tt.sortBy}))
		if !equalIDs(got, tt.want) {
			t.Errorf("sortBy=%s: got %v, want %v", tt.sortBy, got, tt.want)
		}
	}
}

func TestApplyFiltersAdjacentOrdering(t *testing.T) {
	in := scoredFixture()
	checks := map[models.SortBy]func(a, b models.ScoredListing) bool{
		models.SortPriceLow:  func(a, b models.ScoredListing) bool { return a.Price <= b.Price },
		models.SortPriceHigh: func(a, b models.ScoredListing) bool { return a.Price >= b.Price },
		models.SortRating:    func(a, b models.ScoredListing) bool { return a.Rating >= b.Rating },
		models.SortReviews:   func(a, b models.ScoredListing) bool { return a.ReviewCount >= b.ReviewCount },
	}
	for by, ok := range checks {
		out := ApplyFilters(in, models.Filters{SortBy: by})
		for i := 1; i < len(out); i++ {
			if !ok(out[i-1], out[i]) {
				t.Errorf("sortBy=%s: pair %d/%d out of order", by, i-1, i)
			}
		}
	}
}

func TestApplyFiltersTighteningNeverGrows(t *testing.T) {
	in := scoredFixture()
	loose := []models.Filters{
		{},
		{PriceRange: models.PriceRange{Min: 0, Max: 1000}},
		{MinRating: 3.0},
		{PriceRange: models.PriceRange{Min: 100}, MinRating: 4.0},
	}
	tighten := func(f models.Filters) []models.Filters {
		a := f
		a.PriceRange.Min += 200
		b := f
		b.MinRating += 0.5
		c := f
		c.InStockOnly = true
		d := f
		if d.PriceRange.Max == 0 {
			d.PriceRange.Max = 500
		} else {
			d.PriceRange.Max -= 300
		}
		return []models.Filters{a, b, c, d}
	}

	for _, f := range loose {
		base := len(ApplyFilters(in, f))
		for _, tf := range tighten(f) {
			if n := len(ApplyFilters(in, tf)); n > base {
				t.Errorf("tightening %+v → %+v grew results from %d to %d", f, tf, base, n)
			}
		}
	}
}

func TestApplyFiltersDoesNotMutateInput(t *testing.T) {
	in := scoredFixture()
	before := ids(in)
	ApplyFilters(in, models.Filters{SortBy: models.SortPriceLow})
	if !equalIDs(ids(in), before) {
		t.Errorf("input reordered: got %v, want %v", ids(in), before)
	}
}

func TestAssemblePagination(t *testing.T) {
	ordered := scoredFixture()

	tests := []struct {
		page, size int
		wantIDs    []string
		hasNext    bool
	}{
		{1, 2, []string{"A", "B"}, true},
		{2, 2, []string{"C", "D"}, true},
		{3, 2, []string{"E"}, false},
		{4, 2, []string{}, false},
		{1, 5, []string{"A", "B", "C", "D", "E"}, false},
		{1, 20, []string{"A", "B", "C", "D", "E"}, false},
		{math.MaxInt, 1, []string{}, false},
		{math.MaxInt / 20, 20, []string{}, false},
	}

	for _, tt := range tests {
		r := Assemble(ordered, tt.page, tt.size)
		if r.TotalFound != 5 {
			t.Errorf("page %d size %d: TotalFound = %d; want 5", tt.page, tt.size, r.TotalFound)
		}
		if !equalIDs(ids(r.Listings), tt.wantIDs) {
			t.Errorf("page %d size %d: got %v, want %v", tt.page, tt.size, ids(r.Listings), tt.wantIDs)
		}
		if r.HasNext != tt.hasNext {
			t.Errorf("page %d size %d: HasNext = %v; want %v", tt.page, tt.size, r.HasNext, tt.hasNext)
		}
	}
}

func TestAssemblePagesCompose(t *testing.T) {
	ordered := scoredFixture()
	var all []string
	for page := 1; ; page++ {
		r := Assemble(ordered, page, 2)
		all = append(all, ids(r.Listings)...)
		if !r.HasNext {
			break
		}
	}
	if !equalIDs(all, ids(ordered)) {
		t.Errorf("appended pages: got %v, want %v", all, ids(ordered))
	}
}
