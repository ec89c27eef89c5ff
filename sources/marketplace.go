package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"shopscout/fetcher"
	"shopscout/models"
	"shopscout/utils"
)

// selectorSet describes where the fields of one result card live on a
// marketplace search page.
type selectorSet struct {
	Card          string
	IDAttr        string // attribute on the card holding a stable item id
	Title         string
	Link          string
	Price         string
	OriginalPrice string
	Rating        string
	RatingAttr    string // read the rating from this attribute instead of text
	Reviews       string
	Image         string
	Availability  string
	Seller        string
}

var marketplaceSelectors = map[string]selectorSet{
	"amazon": {
		Card:          "div[data-component-type='s-search-result']",
		IDAttr:        "data-asin",
		Title:         "h2 span",
		Link:          "h2 a",
		Price:         "span.a-price:not(.a-text-price) span.a-offscreen",
		OriginalPrice: "span.a-price.a-text-price span.a-offscreen",
		Rating:        "span.a-icon-alt",
		Reviews:       "span[aria-label$='ratings'], span.a-size-base.s-underline-text",
		Image:         "img.s-image",
		Availability:  "span[aria-label*='left in stock'], span.a-color-price",
	},
	"noon": {
		Card:          "div[data-qa='product-block'], div.productContainer",
		IDAttr:        "data-sku",
		Title:         "[data-qa='product-name']",
		Link:          "a",
		Price:         "strong.amount",
		OriginalPrice: "span.oldPrice",
		Rating:        "div[class*='rating'] span",
		Reviews:       "span[class*='ratingCount']",
		Image:         "img",
		Availability:  "div[class*='stock']",
		Seller:        "span[class*='seller']",
	},
	"jumia": {
		Card:          "article.prd",
		Title:         "h3.name",
		Link:          "a.core",
		Price:         "div.prc",
		OriginalPrice: "div.old",
		Rating:        "div.stars._s",
		Reviews:       "div.rev",
		Image:         "img.img",
		Availability:  "div.bdg._xs",
	},
	"walmart": {
		Card:          "div[data-item-id]",
		IDAttr:        "data-item-id",
		Title:         "span[data-automation-id='product-title']",
		Link:          "a[link-identifier], a",
		Price:         "div[data-automation-id='product-price'] span.f2, div[data-automation-id='product-price'] span",
		OriginalPrice: "div[data-automation-id='product-price'] .strike",
		Rating:        "span[data-testid='product-ratings']",
		RatingAttr:    "data-value",
		Reviews:       "span[data-testid='product-reviews']",
		Image:         "img[data-testid='productTileImage']",
		Availability:  "div[data-automation-id='inventory-status']",
		Seller:        "div[data-automation-id='fulfillment-badge']",
	},
	"argos": {
		Card:          "div[data-test='component-product-card']",
		IDAttr:        "data-product-id",
		Title:         "[data-test='component-product-card-title']",
		Link:          "a[data-test='component-product-card-title'], a",
		Price:         "[data-test='component-product-card-price']",
		OriginalPrice: "[data-test='component-product-card-was-price']",
		Rating:        "[data-test='component-ratings']",
		RatingAttr:    "data-star-rating",
		Reviews:       "[data-test='component-ratings'] span",
		Image:         "img",
		Availability:  "[data-test='component-product-card-stock']",
		Seller:        "",
	},
}

// MarketplaceKinds lists the supported HTML marketplace kinds.
func MarketplaceKinds() []string {
	return []string{"amazon", "noon", "jumia", "walmart", "argos"}
}

// SearchURL builds the first-page search URL for a marketplace kind.
func SearchURL(kind, domain, countryCode, query string) (string, error) {
	q := url.QueryEscape(query)
	switch kind {
	case "amazon":
		return fmt.Sprintf("https://%s/s?k=%s&ref=sr_pg_1", domain, q), nil
	case "noon":
		return fmt.Sprintf("https://%s/%s-en/search/?q=%s", domain, strings.ToLower(countryCode), q), nil
	case "jumia":
		return fmt.Sprintf("https://%s/catalog/?q=%s", domain, q), nil
	case "walmart":
		return fmt.Sprintf("https://%s/search/?query=%s", domain, q), nil
	case "argos":
		return fmt.Sprintf("https://%s/search/%s/", domain, url.PathEscape(query)), nil
	default:
		return "", fmt.Errorf("unknown marketplace kind %q", kind)
	}
}

// MarketplaceSource scrapes a marketplace's own search results page. Prices
// are read from display text and are already major units.
type MarketplaceSource struct {
	sc        SourceContext
	kind      string
	selectors selectorSet
	fetcher   fetcher.PageFetcher
	logger    *utils.Logger
	now       func() time.Time
}

// NewMarketplaceSource creates a source for an HTML marketplace of the given kind.
func NewMarketplaceSource(sc SourceContext, kind string, pf fetcher.PageFetcher, logger *utils.Logger) (*MarketplaceSource, error) {
	sel, ok := marketplaceSelectors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown marketplace kind %q", kind)
	}
	return &MarketplaceSource{
		sc:        sc,
		kind:      kind,
		selectors: sel,
		fetcher:   pf,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *MarketplaceSource) Name() string { return s.sc.Platform.ID }

func (s *MarketplaceSource) Search(ctx context.Context, q models.SearchQuery) (Batch, error) {
	pageURL, err := SearchURL(s.kind, s.sc.Platform.Domain, s.sc.Locale.CountryCode, q.RawQuery)
	if err != nil {
		return Batch{}, err
	}

	html, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return Batch{}, fmt.Errorf("%s: %w", s.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Batch{}, fmt.Errorf("%s: parse html: %w", s.Name(), err)
	}

	fetchedAt := s.now()
	seen := utils.NewKeySet()
	var batch Batch

	doc.Find(s.selectors.Card).Each(func(i int, card *goquery.Selection) {
		raw := s.parseCard(card)

		key := raw.ID
		if key == "" {
			key = raw.URL
		}
		if key != "" && !seen.Add(key) {
			s.logger.Debug("[%s] Skipping duplicate card: %s", s.Name(), key)
			return
		}

		batch.Received++
		listing, aerr := Normalize(raw, s.sc, fetchedAt)
		if aerr != nil {
			s.logger.Debug("[%s] %v", s.Name(), aerr)
			batch.Dropped = append(batch.Dropped, aerr)
			return
		}
		batch.Listings = append(batch.Listings, listing)
	})

	s.logger.Debug("[%s] %d cards, %d normalized", s.Name(), batch.Received, len(batch.Listings))
	return batch, nil
}

func (s *MarketplaceSource) parseCard(card *goquery.Selection) RawItem {
	sel := s.selectors
	raw := RawItem{
		Title:            firstText(card, sel.Title),
		URL:              firstAttr(card, sel.Link, "href"),
		AvailabilityText: firstText(card, sel.Availability),
		Seller:           firstText(card, sel.Seller),
		ReviewCount:      parseCountText(firstText(card, sel.Reviews)),
	}

	if sel.IDAttr != "" {
		raw.ID = strings.TrimSpace(card.AttrOr(sel.IDAttr, ""))
	}
	if raw.ID == "" {
		raw.ID = firstAttr(card, sel.Link, "data-id")
	}

	if price, ok := parsePriceText(firstText(card, sel.Price)); ok {
		raw.Price = &price
	}
	if orig, ok := parsePriceText(firstText(card, sel.OriginalPrice)); ok {
		raw.OriginalPrice = &orig
	}

	if sel.RatingAttr != "" {
		raw.Rating = parseRatingText(firstAttr(card, sel.Rating, sel.RatingAttr))
	} else {
		raw.Rating = parseRatingText(firstText(card, sel.Rating))
	}

	if img := firstAttr(card, sel.Image, "data-src"); img != "" {
		raw.Images = []string{img}
	} else if img := firstAttr(card, sel.Image, "src"); img != "" {
		raw.Images = []string{img}
	}

	return raw
}

func firstText(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(card.Find(selector).First().Text())
}

func firstAttr(card *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(card.Find(selector).First().AttrOr(attr, ""))
}
