package sources

import (
	"context"
	"fmt"

	"shopscout/models"
)

// Source is one pluggable product data provider bound to a single platform.
// Search returns every listing it could normalize from the provider's first
// result page. Items that fail to normalize are reported in Batch.Dropped
// and never abort the call.
type Source interface {
	Name() string
	Search(ctx context.Context, q models.SearchQuery) (Batch, error)
}

// Batch is what one source contributes to a search.
type Batch struct {
	Listings []models.NormalizedListing
	Dropped  []*AdapterError
	// Received counts raw items returned by the provider, parsed or not.
	Received int
}

// AllDropped reports whether the provider returned items but none survived
// normalization.
func (b Batch) AllDropped() bool {
	return b.Received > 0 && len(b.Listings) == 0 && len(b.Dropped) > 0
}

// SourceContext carries the locale and platform a source runs under.
type SourceContext struct {
	Locale   models.Locale
	Platform models.Platform
}

// AdapterError describes one provider item that could not be normalized.
type AdapterError struct {
	Source string
	ItemID string
	Reason string
}

func (e *AdapterError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("%s: dropped item: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("%s: dropped item %s: %s", e.Source, e.ItemID, e.Reason)
}
