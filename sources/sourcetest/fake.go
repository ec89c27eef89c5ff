// Package sourcetest provides a scriptable Source for tests. It is never
// wired into the production registry.
package sourcetest

import (
	"context"
	"sync/atomic"
	"time"

	"shopscout/models"
	"shopscout/sources"
)

// FakeSource returns a fixed batch or error after an optional delay.
type FakeSource struct {
	SourceName string
	Listings   []models.NormalizedListing
	Dropped    []*sources.AdapterError
	Err        error
	Delay      time.Duration
	Panic      any

	calls atomic.Int32
}

func (f *FakeSource) Name() string { return f.SourceName }

// Calls reports how many times Search was invoked.
func (f *FakeSource) Calls() int { return int(f.calls.Load()) }

func (f *FakeSource) Search(ctx context.Context, q models.SearchQuery) (sources.Batch, error) {
	f.calls.Add(1)

	if f.Delay > 0 {
		timer := time.NewTimer(f.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return sources.Batch{}, ctx.Err()
		case <-timer.C:
		}
	}
	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Err != nil {
		return sources.Batch{}, f.Err
	}

	listings := make([]models.NormalizedListing, len(f.Listings))
	copy(listings, f.Listings)
	return sources.Batch{
		Listings: listings,
		Dropped:  f.Dropped,
		Received: len(f.Listings) + len(f.Dropped),
	}, nil
}

// Listing builds a well-formed listing for platform with the given id,
// title and price. Other fields get neutral defaults.
func Listing(platform models.Platform, id, title string, price float64) models.NormalizedListing {
	return models.NormalizedListing{
		ID:           platform.ID + ":" + id,
		Title:        title,
		Price:        price,
		Images:       []string{},
		Brand:        "Generic",
		Category:     "Electronics",
		Availability: models.InStock,
		Platform:     platform,
		URL:          "https://" + platform.Domain + "/dp/" + id,
		Currency:     "USD",
		FetchedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
