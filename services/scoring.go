package services

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"shopscout/models"
)

// Weights of the four sub-scores in the overall score. They sum to 1.
const (
	WeightRelevance    = 0.35
	WeightAuthenticity = 0.25
	WeightPrice        = 0.25
	WeightAvailability = 0.15

	neutralScore = 50.0
)

// priceStats is the comparison universe for price competitiveness.
type priceStats struct {
	min, max float64
	size     int
}

func batchPriceStats(batch []models.NormalizedListing) priceStats {
	st := priceStats{size: len(batch)}
	for i, l := range batch {
		if i == 0 || l.Price < st.min {
			st.min = l.Price
		}
		if i == 0 || l.Price > st.max {
			st.max = l.Price
		}
	}
	return st
}

// ScoreBatch scores every listing against the query, using the whole batch
// as the market for price competitiveness. The input is not modified.
func ScoreBatch(batch []models.NormalizedListing, query string) ([]models.ScoredListing, error) {
	stats := batchPriceStats(batch)
	out := make([]models.ScoredListing, 0, len(batch))
	for _, l := range batch {
		s, err := scoreWith(l, query, stats)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Score scores a single listing within batch. batch is expected to contain
// the listing itself.
func Score(listing models.NormalizedListing, query string, batch []models.NormalizedListing) (models.ScoredListing, error) {
	return scoreWith(listing, query, batchPriceStats(batch))
}

func scoreWith(l models.NormalizedListing, query string, stats priceStats) (models.ScoredListing, error) {
	s := models.ScoredListing{
		NormalizedListing:    l,
		RelevanceScore:       RelevanceScore(l.Title, l.Brand, query),
		AuthenticityScore:    AuthenticityScore(l),
		PriceCompetitiveness: priceCompetitiveness(l.Price, stats),
		AvailabilityScore:    AvailabilityScore(l.Availability),
	}
	s.Images = append([]string(nil), l.Images...)
	s.OverallScore = WeightRelevance*s.RelevanceScore +
		WeightAuthenticity*s.AuthenticityScore +
		WeightPrice*s.PriceCompetitiveness +
		WeightAvailability*s.AvailabilityScore

	for _, sub := range []struct {
		name  string
		value float64
	}{
		{"relevance", s.RelevanceScore},
		{"authenticity", s.AuthenticityScore},
		{"price", s.PriceCompetitiveness},
		{"availability", s.AvailabilityScore},
		{"overall", s.OverallScore},
	} {
		if math.IsNaN(sub.value) || sub.value < 0 || sub.value > 100 {
			return models.ScoredListing{}, &InternalError{
				Op:  "score",
				Err: fmt.Errorf("%s score %v out of range for %s", sub.name, sub.value, l.ID),
			}
		}
	}
	return s, nil
}

// RelevanceScore rates how well a title matches the query:
// +50 when the title contains the whole query, +30 when the brand appears
// in the query, and up to +20 for the share of query words longer than two
// characters found inside title words.
func RelevanceScore(title, brand, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(title)
	if q == "" {
		return 0
	}

	score := 0.0
	if strings.Contains(t, q) {
		score += 50
	}
	if b := strings.ToLower(strings.TrimSpace(brand)); b != "" && strings.Contains(q, b) {
		score += 30
	}

	var words []string
	for _, w := range strings.Fields(q) {
		if utf8.RuneCountInString(w) > 2 {
			words = append(words, w)
		}
	}
	if len(words) > 0 {
		titleWords := strings.Fields(t)
		matched := 0
		for _, w := range words {
			for _, tw := range titleWords {
				if strings.Contains(tw, w) {
					matched++
					break
				}
			}
		}
		score += 20 * float64(matched) / float64(len(words))
	}

	return math.Min(score, 100)
}

// AuthenticityScore rates how trustworthy an offer looks from its rating,
// review volume, platform and seller.
func AuthenticityScore(l models.NormalizedListing) float64 {
	score := ratingTier(l.Rating) + reviewTier(l.ReviewCount) + platformReputation(l.Platform.Name)
	if seller := strings.ToLower(strings.TrimSpace(l.Seller)); seller != "" && !strings.Contains(seller, "unknown") {
		score += 20
	}
	return math.Min(score, 100)
}

func ratingTier(r float64) float64 {
	switch {
	case r >= 4.5:
		return 30
	case r >= 4.0:
		return 25
	case r >= 3.5:
		return 15
	case r >= 3.0:
		return 5
	default:
		return 0
	}
}

func reviewTier(n int) float64 {
	switch {
	case n >= 1000:
		return 25
	case n >= 500:
		return 20
	case n >= 100:
		return 15
	case n >= 50:
		return 10
	case n >= 10:
		return 5
	default:
		return 0
	}
}

func platformReputation(name string) float64 {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "amazon"):
		return 25
	case strings.Contains(lower, "noon"):
		return 20
	default:
		return 15
	}
}

// PriceCompetitiveness places price within the batch's price range: the
// cheapest listing gets 100 and the most expensive 0. A batch without peers
// or with a single price level is neutral.
func PriceCompetitiveness(price float64, batch []models.NormalizedListing) float64 {
	return priceCompetitiveness(price, batchPriceStats(batch))
}

func priceCompetitiveness(price float64, st priceStats) float64 {
	if st.size < 2 || st.max == st.min {
		return neutralScore
	}
	v := (st.max - price) / (st.max - st.min) * 100
	return math.Max(0, math.Min(100, v))
}

// AvailabilityScore maps stock state to 100, 50 or 0.
func AvailabilityScore(a models.Availability) float64 {
	switch a {
	case models.InStock:
		return 100
	case models.LimitedStock:
		return 50
	default:
		return 0
	}
}
