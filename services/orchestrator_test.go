package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shopscout/models"
	"shopscout/sources"
	"shopscout/sources/sourcetest"
	"shopscout/utils"
)

var testQuery = models.SearchQuery{RawQuery: "iphone", CountryCode: "US"}

func listingIDs(ls []models.NormalizedListing) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}

func TestFetchAllPartialFailure(t *testing.T) {
	a := &sourcetest.FakeSource{SourceName: "amazon_us", Listings: []models.NormalizedListing{
		sourcetest.Listing(amazonUS, "1", "Apple iPhone 15", 999),
	}}
	b := &sourcetest.FakeSource{SourceName: "walmart_us", Err: errors.New("HTTP 503")}
	c := &sourcetest.FakeSource{SourceName: "noon_ae", Listings: []models.NormalizedListing{
		sourcetest.Listing(noonAE, "2", "Apple iPhone 15", 3499),
	}}

	o := NewOrchestrator(time.Second, 0, utils.NewNopLogger())
	out, err := o.FetchAll(context.Background(), testQuery, []sources.Source{a, b, c})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	if len(out.Listings) != 2 {
		t.Errorf("Listings: got %d, want 2", len(out.Listings))
	}
	if len(out.Errors) != 1 {
		t.Fatalf("Errors: got %+v, want exactly one", out.Errors)
	}
	if e := out.Errors[0]; e.Source != "walmart_us" || e.Kind != models.ErrorKindFetch || !strings.Contains(e.Message, "503") {
		t.Errorf("error entry: got %+v", e)
	}
	if out.Failed != 1 || out.AllFailed() {
		t.Errorf("Failed = %d, AllFailed = %v; want 1, false", out.Failed, out.AllFailed())
	}
	if got := strings.Join(out.SourcesQueried, ","); got != "amazon_us,walmart_us,noon_ae" {
		t.Errorf("SourcesQueried = %s", got)
	}
}

func TestFetchAllMergesInConfigurationOrder(t *testing.T) {
	slow := &sourcetest.FakeSource{SourceName: "slow", Delay: 40 * time.Millisecond, Listings: []models.NormalizedListing{
		sourcetest.Listing(amazonUS, "slow", "Kettle", 20),
	}}
	fast := &sourcetest.FakeSource{SourceName: "fast", Listings: []models.NormalizedListing{
		sourcetest.Listing(walmartUS, "fast", "Kettle", 25),
	}}

	o := NewOrchestrator(time.Second, 0, utils.NewNopLogger())
	out, err := o.FetchAll(context.Background(), testQuery, []sources.Source{slow, fast})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	got := strings.Join(listingIDs(out.Listings), ",")
	if got != "amazon_us:slow,walmart_us:fast" {
		t.Errorf("merge order: got %s", got)
	}
}

func TestFetchAllReturnsPromptlyOnCancel(t *testing.T) {
	hung := &sourcetest.FakeSource{SourceName: "hung", Delay: 5 * time.Second}
	o := NewOrchestrator(0, 0, utils.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := o.FetchAll(ctx, testQuery, []sources.Source{hung})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("FetchAll took %v after cancel", elapsed)
	}
}

func TestFetchAllRecoversPanickingSource(t *testing.T) {
	bad := &sourcetest.FakeSource{SourceName: "bad", Panic: "nil map write"}
	good := &sourcetest.FakeSource{SourceName: "good", Listings: []models.NormalizedListing{
		sourcetest.Listing(amazonUS, "1", "Kettle", 20),
	}}

	o := NewOrchestrator(time.Second, 0, utils.NewNopLogger())
	out, err := o.FetchAll(context.Background(), testQuery, []sources.Source{bad, good})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(out.Listings) != 1 {
		t.Errorf("Listings: got %d, want 1", len(out.Listings))
	}
	if len(out.Errors) != 1 || !strings.Contains(out.Errors[0].Message, "panicked") {
		t.Errorf("Errors: got %+v", out.Errors)
	}
}

func TestFetchAllPerSourceTimeout(t *testing.T) {
	slow := &sourcetest.FakeSource{SourceName: "slow", Delay: 2 * time.Second}
	o := NewOrchestrator(30*time.Millisecond, 0, utils.NewNopLogger())

	start := time.Now()
	out, err := o.FetchAll(context.Background(), testQuery, []sources.Source{slow})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout did not bound the source call")
	}
	if !out.AllFailed() {
		t.Errorf("AllFailed = false; want true")
	}
	if len(out.Errors) != 1 || !strings.Contains(out.Errors[0].Message, "timed out") {
		t.Errorf("Errors: got %+v", out.Errors)
	}
}

func TestFetchAllReportsFullyDroppedSource(t *testing.T) {
	broken := &sourcetest.FakeSource{SourceName: "jumia_eg", Dropped: []*sources.AdapterError{
		{Source: "jumia_eg", ItemID: "x1", Reason: "missing price"},
		{Source: "jumia_eg", ItemID: "x2", Reason: "missing title"},
	}}
	partly := &sourcetest.FakeSource{
		SourceName: "noon_eg",
		Listings:   []models.NormalizedListing{sourcetest.Listing(noonAE, "1", "Kettle", 200)},
		Dropped:    []*sources.AdapterError{{Source: "noon_eg", Reason: "missing url"}},
	}

	o := NewOrchestrator(time.Second, 0, utils.NewNopLogger())
	out, err := o.FetchAll(context.Background(), testQuery, []sources.Source{broken, partly})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("Errors: got %+v, want one parse entry", out.Errors)
	}
	if e := out.Errors[0]; e.Source != "jumia_eg" || e.Kind != models.ErrorKindParse {
		t.Errorf("entry: got %+v", e)
	}
	if out.Failed != 1 || len(out.Listings) != 1 {
		t.Errorf("Failed = %d, listings = %d; want 1, 1", out.Failed, len(out.Listings))
	}
}

// countingSource records the peak number of concurrent Search calls.
type countingSource struct {
	name     string
	inFlight *atomic.Int32
	peak     *atomic.Int32
	mu       *sync.Mutex
}

func (c countingSource) Name() string { return c.name }

func (c countingSource) Search(ctx context.Context, _ models.SearchQuery) (sources.Batch, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	c.mu.Lock()
	if n > c.peak.Load() {
		c.peak.Store(n)
	}
	c.mu.Unlock()
	time.Sleep(15 * time.Millisecond)
	return sources.Batch{}, nil
}

func TestFetchAllRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	srcs := make([]sources.Source, 6)
	for i := range srcs {
		srcs[i] = countingSource{name: string(rune('a' + i)), inFlight: &inFlight, peak: &peak, mu: &mu}
	}

	o := NewOrchestrator(time.Second, 2, utils.NewNopLogger())
	out, err := o.FetchAll(context.Background(), testQuery, srcs)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d; want <= 2", p)
	}
	if len(out.SourcesQueried) != 6 || len(out.Errors) != 0 {
		t.Errorf("outcome: %+v", out)
	}
}

func TestFetchAllWithoutSources(t *testing.T) {
	o := NewOrchestrator(time.Second, 0, utils.NewNopLogger())
	if _, err := o.FetchAll(context.Background(), testQuery, nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("err = %v; want ErrNoSources", err)
	}
}
