package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shopscout/models"
	"shopscout/utils"
)

const (
	paapiService = "ProductAdvertisingAPI"
	paapiTarget  = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.SearchItems"
	paapiPath    = "/paapi5/searchitems"
	paapiCount   = 10
)

// PA-API host and signing region per Amazon marketplace domain.
var paapiMarketplaces = map[string]struct{ host, region string }{
	"amazon.com":   {"webservices.amazon.com", "us-east-1"},
	"amazon.co.uk": {"webservices.amazon.co.uk", "eu-west-1"},
	"amazon.ae":    {"webservices.amazon.ae", "eu-west-1"},
	"amazon.sa":    {"webservices.amazon.sa", "eu-west-1"},
	"amazon.eg":    {"webservices.amazon.eg", "eu-west-1"},
}

var paapiResources = []string{
	"ItemInfo.Title",
	"ItemInfo.ByLineInfo",
	"ItemInfo.Classifications",
	"ItemInfo.Features",
	"Images.Primary.Large",
	"Offers.Listings.Price",
	"Offers.Listings.SavingBasis",
	"Offers.Listings.Availability.Message",
	"Offers.Listings.MerchantInfo",
	"Offers.Listings.DeliveryInfo.IsFreeShippingEligible",
	"Offers.Listings.DeliveryInfo.IsPrimeEligible",
	"CustomerReviews.Count",
	"CustomerReviews.StarRating",
}

type paapiRequest struct {
	Keywords    string   `json:"Keywords"`
	PartnerTag  string   `json:"PartnerTag"`
	PartnerType string   `json:"PartnerType"`
	Marketplace string   `json:"Marketplace"`
	SearchIndex string   `json:"SearchIndex"`
	ItemCount   int      `json:"ItemCount"`
	SortBy      string   `json:"SortBy,omitempty"`
	Resources   []string `json:"Resources"`
}

type paapiDisplay struct {
	DisplayValue string `json:"DisplayValue"`
}

type paapiAmount struct {
	Amount   *float64 `json:"Amount"`
	Currency string   `json:"Currency"`
}

// Price amounts are treated as minor units (cents) and divided by 100.
type paapiItem struct {
	ASIN          string `json:"ASIN"`
	DetailPageURL string `json:"DetailPageURL"`
	ItemInfo      struct {
		Title      paapiDisplay `json:"Title"`
		ByLineInfo struct {
			Brand paapiDisplay `json:"Brand"`
		} `json:"ByLineInfo"`
		Classifications struct {
			ProductGroup paapiDisplay `json:"ProductGroup"`
		} `json:"Classifications"`
		Features struct {
			DisplayValues []string `json:"DisplayValues"`
		} `json:"Features"`
	} `json:"ItemInfo"`
	Images struct {
		Primary struct {
			Large struct {
				URL string `json:"URL"`
			} `json:"Large"`
		} `json:"Primary"`
	} `json:"Images"`
	Offers struct {
		Listings []struct {
			Price        paapiAmount  `json:"Price"`
			SavingBasis  *paapiAmount `json:"SavingBasis"`
			Availability struct {
				Message string `json:"Message"`
			} `json:"Availability"`
			MerchantInfo struct {
				Name string `json:"Name"`
			} `json:"MerchantInfo"`
			DeliveryInfo struct {
				IsFreeShippingEligible bool `json:"IsFreeShippingEligible"`
				IsPrimeEligible        bool `json:"IsPrimeEligible"`
			} `json:"DeliveryInfo"`
		} `json:"Listings"`
	} `json:"Offers"`
	CustomerReviews struct {
		Count      int `json:"Count"`
		StarRating struct {
			Value float64 `json:"Value"`
		} `json:"StarRating"`
	} `json:"CustomerReviews"`
}

type paapiResponse struct {
	SearchResult struct {
		Items []paapiItem `json:"Items"`
	} `json:"SearchResult"`
	Errors []struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Errors"`
}

// PAAPISource queries the Amazon Product Advertising API 5.0 SearchItems
// operation for one marketplace.
type PAAPISource struct {
	sc         SourceContext
	partnerTag string
	endpoint   string
	signer     sigV4Signer
	client     *http.Client
	retry      *utils.RetryConfig
	logger     *utils.Logger
	now        func() time.Time
}

// PAAPICredentials are the associate account keys.
type PAAPICredentials struct {
	AccessKey  string
	SecretKey  string
	PartnerTag string
}

// NewPAAPISource creates a source for the platform in sc. endpoint overrides
// the scheme and host (for example an httptest server) and may be empty.
func NewPAAPISource(sc SourceContext, creds PAAPICredentials, endpoint string, client *http.Client, retry *utils.RetryConfig, logger *utils.Logger) (*PAAPISource, error) {
	mp, ok := paapiMarketplaces[strings.TrimPrefix(sc.Platform.Domain, "www.")]
	if !ok {
		return nil, fmt.Errorf("paapi: unsupported marketplace %q", sc.Platform.Domain)
	}
	if endpoint == "" {
		endpoint = "https://" + mp.host
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	return &PAAPISource{
		sc:         sc,
		partnerTag: creds.PartnerTag,
		endpoint:   strings.TrimSuffix(endpoint, "/") + paapiPath,
		signer: sigV4Signer{
			accessKey: creds.AccessKey,
			secretKey: creds.SecretKey,
			region:    mp.region,
			service:   paapiService,
		},
		client: client,
		retry:  retry,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *PAAPISource) Name() string { return s.sc.Platform.ID }

func (s *PAAPISource) Search(ctx context.Context, q models.SearchQuery) (Batch, error) {
	payload, err := json.Marshal(paapiRequest{
		Keywords:    q.RawQuery,
		PartnerTag:  s.partnerTag,
		PartnerType: "Associates",
		Marketplace: "www." + strings.TrimPrefix(s.sc.Platform.Domain, "www."),
		SearchIndex: "All",
		ItemCount:   paapiCount,
		SortBy:      paapiSort(q.Filters.SortBy),
		Resources:   paapiResources,
	})
	if err != nil {
		return Batch{}, fmt.Errorf("paapi: encode request: %w", err)
	}

	var resp paapiResponse
	err = doJSON(ctx, s.client, s.retry, "paapi "+s.Name(), func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Encoding", "amz-1.0")
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("X-Amz-Target", paapiTarget)
		s.signer.sign(req, payload, s.now())
		return req, nil
	}, &resp)
	if err != nil {
		return Batch{}, err
	}
	if len(resp.Errors) > 0 && len(resp.SearchResult.Items) == 0 {
		// NoResults is an empty page, not a failure.
		if resp.Errors[0].Code == "NoResults" {
			return Batch{}, nil
		}
		return Batch{}, fmt.Errorf("paapi: %s: %s", resp.Errors[0].Code, resp.Errors[0].Message)
	}

	fetchedAt := s.now()
	batch := Batch{Received: len(resp.SearchResult.Items)}
	for _, item := range resp.SearchResult.Items {
		listing, aerr := Normalize(toRawPAAPI(item), s.sc, fetchedAt)
		if aerr != nil {
			s.logger.Debug("[%s] %v", s.Name(), aerr)
			batch.Dropped = append(batch.Dropped, aerr)
			continue
		}
		batch.Listings = append(batch.Listings, listing)
	}
	return batch, nil
}

func toRawPAAPI(item paapiItem) RawItem {
	raw := RawItem{
		ID:          item.ASIN,
		Title:       item.ItemInfo.Title.DisplayValue,
		Description: strings.Join(item.ItemInfo.Features.DisplayValues, " "),
		Brand:       item.ItemInfo.ByLineInfo.Brand.DisplayValue,
		Category:    item.ItemInfo.Classifications.ProductGroup.DisplayValue,
		Rating:      item.CustomerReviews.StarRating.Value,
		ReviewCount: item.CustomerReviews.Count,
		URL:         item.DetailPageURL,
	}
	if img := item.Images.Primary.Large.URL; img != "" {
		raw.Images = []string{img}
	}
	if len(item.Offers.Listings) == 0 {
		return raw
	}

	offer := item.Offers.Listings[0]
	raw.Price = fromCents(offer.Price.Amount)
	if offer.SavingBasis != nil {
		raw.OriginalPrice = fromCents(offer.SavingBasis.Amount)
	}
	raw.AvailabilityText = offer.Availability.Message
	raw.Seller = offer.MerchantInfo.Name
	raw.FreeShipping = offer.DeliveryInfo.IsFreeShippingEligible || offer.DeliveryInfo.IsPrimeEligible
	if offer.DeliveryInfo.IsPrimeEligible {
		raw.EstimatedDays = "1-2 days"
	} else {
		raw.EstimatedDays = "3-7 days"
	}
	return raw
}

func fromCents(cents *float64) *float64 {
	if cents == nil {
		return nil
	}
	v := *cents / 100
	return &v
}

func paapiSort(sortBy models.SortBy) string {
	switch sortBy {
	case models.SortPriceLow:
		return "Price:LowToHigh"
	case models.SortPriceHigh:
		return "Price:HighToLow"
	case models.SortRating, models.SortReviews:
		return "AvgCustomerReviews"
	case models.SortNewest:
		return "NewestArrivals"
	default:
		return "Relevance"
	}
}
