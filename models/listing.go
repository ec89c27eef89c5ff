package models

import "time"

// Availability is the normalised stock state of a listing.
type Availability string

const (
	InStock      Availability = "in_stock"
	LimitedStock Availability = "limited_stock"
	OutOfStock   Availability = "out_of_stock"
)

// Platform identifies one locale-specific marketplace instance, e.g.
// "Amazon Egypt" as opposed to "Amazon US".
type Platform struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// Shipping describes delivery terms for a listing.
type Shipping struct {
	Free          bool     `json:"free"`
	Cost          *float64 `json:"cost,omitempty"`
	EstimatedDays string   `json:"estimatedDays"`
}

// NormalizedListing is the canonical representation of one marketplace
// offer. Prices are major currency units (already divided out of cents).
type NormalizedListing struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Price          float64      `json:"price"`
	OriginalPrice  *float64     `json:"originalPrice,omitempty"`
	Discount       string       `json:"discount,omitempty"`
	Rating         float64      `json:"rating"`
	ReviewCount    int          `json:"reviewCount"`
	Images         []string     `json:"images"`
	Brand          string       `json:"brand"`
	Category       string       `json:"category"`
	Seller         string       `json:"seller,omitempty"`
	Availability   Availability `json:"availability"`
	Platform       Platform     `json:"platform"`
	URL            string       `json:"url"`
	Currency       string       `json:"currency"`
	CurrencySymbol string       `json:"currencySymbol"`
	Shipping       Shipping     `json:"shipping"`
	FetchedAt      time.Time    `json:"fetchedAt"`
}

// PrimaryImage returns the first image URL or "" when there is none.
func (l NormalizedListing) PrimaryImage() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

// ScoredListing is a NormalizedListing annotated by the scoring engine.
// It is produced once and never mutated; re-scoring builds a new value.
type ScoredListing struct {
	NormalizedListing

	RelevanceScore       float64 `json:"relevanceScore"`
	AuthenticityScore    float64 `json:"authenticityScore"`
	PriceCompetitiveness float64 `json:"priceCompetitiveness"`
	AvailabilityScore    float64 `json:"availabilityScore"`
	OverallScore         float64 `json:"overallScore"`
}
