package sources

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"shopscout/models"
)

var (
	// priceRegexp captures the first numeric amount, thousands separators included
	priceRegexp = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	// ratingRegexp captures a numeric rating in the 0.0–5.0 range
	ratingRegexp = regexp.MustCompile(`\b([0-5](?:\.\d{1,2})?)\b`)
	// countRegexp captures a review count such as "1,234" or "(87)"
	countRegexp = regexp.MustCompile(`\d[\d,]*`)
)

var knownBrands = []string{
	"Apple", "Samsung", "Sony", "LG", "Nike", "Adidas", "Canon", "Nikon",
	"Dell", "HP", "Lenovo", "ASUS", "Acer", "Microsoft", "Google", "Amazon",
	"Huawei", "Xiaomi", "OnePlus", "Oppo", "Vivo", "Realme", "Honor",
}

// Checked in order. Audio comes before Smartphones so "headphones" is not
// filed under phones.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Audio", []string{"headphone", "earphone", "earbud", "audio", "speaker"}},
	{"Smartphones", []string{"phone", "iphone", "galaxy s", "samsung"}},
	{"Laptops", []string{"laptop", "macbook", "notebook", "computer"}},
	{"Wearables", []string{"smart watch", "smartwatch", "watch"}},
	{"Cameras", []string{"camera", "photography"}},
	{"Tablets", []string{"tablet", "ipad"}},
	{"Footwear", []string{"shoe", "sneaker", "boot"}},
}

const defaultCategory = "Electronics"

// RawItem is the provider-neutral shape every adapter reduces its items to
// before normalization. Price and OriginalPrice are major currency units;
// adapters that receive minor units convert before filling them in.
type RawItem struct {
	ID            string
	Title         string
	Description   string
	Price         *float64
	OriginalPrice *float64
	Rating        float64
	ReviewCount   int
	Images        []string
	Brand         string
	Category      string
	Seller        string
	// AvailabilityText is the provider's free-form stock string.
	AvailabilityText string
	URL              string
	FreeShipping     bool
	ShippingCost     *float64
	EstimatedDays    string
}

// Normalize converts one RawItem into a NormalizedListing. It never panics
// on malformed input; rejected items come back as an AdapterError.
func Normalize(raw RawItem, sc SourceContext, fetchedAt time.Time) (models.NormalizedListing, *AdapterError) {
	fail := func(reason string) (models.NormalizedListing, *AdapterError) {
		return models.NormalizedListing{}, &AdapterError{Source: sc.Platform.ID, ItemID: raw.ID, Reason: reason}
	}

	title := normaliseText(raw.Title)
	if title == "" {
		return fail("missing title")
	}
	if raw.Price == nil {
		return fail("missing price")
	}
	price := *raw.Price
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fail(fmt.Sprintf("invalid price %v", price))
	}

	link := resolveURL(raw.URL, sc.Platform.Domain)
	if link == "" {
		return fail("missing url")
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = link
	}

	listing := models.NormalizedListing{
		ID:             sc.Platform.ID + ":" + id,
		Title:          title,
		Description:    normaliseText(raw.Description),
		Price:          price,
		Rating:         clampRating(raw.Rating),
		ReviewCount:    raw.ReviewCount,
		Images:         resolveImages(raw.Images, sc.Platform.Domain),
		Brand:          normaliseText(raw.Brand),
		Category:       normaliseText(raw.Category),
		Seller:         normaliseText(raw.Seller),
		Availability:   ParseAvailability(raw.AvailabilityText),
		Platform:       sc.Platform,
		URL:            link,
		Currency:       sc.Locale.Currency,
		CurrencySymbol: sc.Locale.CurrencySymbol,
		Shipping: models.Shipping{
			Free:          raw.FreeShipping,
			EstimatedDays: strings.TrimSpace(raw.EstimatedDays),
		},
		FetchedAt: fetchedAt,
	}

	if listing.ReviewCount < 0 {
		listing.ReviewCount = 0
	}
	if raw.OriginalPrice != nil && *raw.OriginalPrice > price && !math.IsInf(*raw.OriginalPrice, 0) {
		orig := *raw.OriginalPrice
		listing.OriginalPrice = &orig
		listing.Discount = Discount(price, orig)
	}
	if raw.FreeShipping {
		zero := 0.0
		listing.Shipping.Cost = &zero
	} else if raw.ShippingCost != nil && *raw.ShippingCost >= 0 {
		cost := *raw.ShippingCost
		listing.Shipping.Cost = &cost
	}
	if listing.Brand == "" {
		listing.Brand = inferBrand(title)
	}
	if listing.Category == "" {
		listing.Category = inferCategory(title)
	}

	return listing, nil
}

// ParseAvailability maps a provider stock string onto the fixed vocabulary.
// Matching is a case-insensitive substring test; anything unrecognised,
// including an empty string, counts as in stock.
func ParseAvailability(raw string) models.Availability {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "out of stock"), strings.Contains(s, "unavailable"):
		return models.OutOfStock
	case strings.Contains(s, "limited"), strings.Contains(s, "few left"), onlyLeft(s):
		return models.LimitedStock
	default:
		return models.InStock
	}
}

// onlyLeft catches the "Only 2 left" family, which is a low-stock notice
// with the count in the middle.
func onlyLeft(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "only ") && strings.Contains(s, " left")
}

// Discount returns the rounded percentage saved, e.g. "20%", or "" when
// originalPrice does not exceed price.
func Discount(price, originalPrice float64) string {
	if originalPrice <= 0 || originalPrice <= price {
		return ""
	}
	pct := math.Round((originalPrice - price) / originalPrice * 100)
	return fmt.Sprintf("%d%%", int(pct))
}

// parsePriceText extracts a major-unit amount from display text such as
// "EGP 1,299.00" or "$49.99". ok is false when no number is present.
func parsePriceText(raw string) (float64, bool) {
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// parseRatingText extracts a 0.0–5.0 rating from text like "4.5 out of 5 stars".
func parseRatingText(raw string) float64 {
	match := ratingRegexp.FindStringSubmatch(raw)
	if len(match) < 2 {
		return 0
	}
	val, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return clampRating(val)
}

// parseCountText extracts an integer count from text like "(1,234)".
func parseCountText(raw string) int {
	match := countRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func clampRating(v float64) float64 {
	if math.IsNaN(v) || v < 0 || v > 5 {
		return 0
	}
	return v
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func inferBrand(title string) string {
	lower := strings.ToLower(title)
	for _, brand := range knownBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	if fields := strings.Fields(title); len(fields) > 0 {
		return fields[0]
	}
	return "Generic"
}

func inferCategory(title string) string {
	lower := strings.ToLower(title)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return defaultCategory
}

// resolveURL makes raw absolute against https://<domain>. Protocol-relative
// links get https. Returns "" when raw is empty or unparseable.
func resolveURL(raw, domain string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if domain == "" {
		return ""
	}
	base := &url.URL{Scheme: "https", Host: domain, Path: "/"}
	return base.ResolveReference(ref).String()
}

func resolveImages(images []string, domain string) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		if resolved := resolveURL(img, domain); resolved != "" {
			out = append(out, resolved)
		}
	}
	return out
}
