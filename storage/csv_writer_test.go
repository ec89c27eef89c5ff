package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shopscout/models"
)

func sampleResult() *models.SearchResult {
	mk := func(id, title string, price, score float64) models.ScoredListing {
		return models.ScoredListing{
			NormalizedListing: models.NormalizedListing{
				ID:           "amazon_eg:" + id,
				Title:        title,
				Price:        price,
				Rating:       4.4,
				ReviewCount:  321,
				Availability: models.InStock,
				Platform:     models.Platform{ID: "amazon_eg", Name: "Amazon Egypt", Domain: "amazon.eg"},
				URL:          "https://www.amazon.eg/dp/" + id,
				Currency:     "EGP",
				FetchedAt:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			OverallScore: score,
		}
	}
	return &models.SearchResult{
		SearchID:    "3f1c2a9e-0000-4000-8000-000000000001",
		Query:       "air fryer",
		CountryCode: "EG",
		Page:        2,
		PageSize:    2,
		Listings: []models.ScoredListing{
			mk("B0A", "Philips Air Fryer, \"XL\"", 4599.5, 81.25),
			mk("B0B", "Tornado Air Fryer", 2999, 74),
		},
	}
}

func TestCSVWriterWritesRankedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	if err := w.Write(context.Background(), sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want header + 2", len(rows))
	}
	if rows[0][0] != "search_id" || len(rows[0]) != len(csvHeader) {
		t.Errorf("header: got %v", rows[0])
	}

	first := rows[1]
	checks := map[int]string{
		3:  "3",
		4:  "amazon_eg",
		5:  "Philips Air Fryer, \"XL\"",
		6:  "4599.50",
		7:  "EGP",
		10: "in_stock",
		11: "81.25",
		13: "2024-03-01T10:00:00Z",
	}
	for col, want := range checks {
		if first[col] != want {
			t.Errorf("row 1 %s = %q; want %q", csvHeader[col], first[col], want)
		}
	}
	if rows[2][3] != "4" {
		t.Errorf("row 2 rank = %s; want 4", rows[2][3])
	}
}

func TestCSVWriterCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	defer w.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}
