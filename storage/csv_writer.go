package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"shopscout/models"
)

var csvHeader = []string{
	"search_id", "query", "country", "rank", "platform", "title", "price",
	"currency", "rating", "reviews", "availability", "overall_score", "url", "fetched_at",
}

// CSVWriter appends the ranked page of each search result to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends one row per listing on the result's page. Rank counts from
// the first listing of the whole result, not of the page.
func (c *CSVWriter) Write(_ context.Context, r *models.SearchResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset := (r.Page - 1) * r.PageSize
	if offset < 0 {
		offset = 0
	}
	for i, l := range r.Listings {
		row := []string{
			r.SearchID,
			r.Query,
			r.CountryCode,
			strconv.Itoa(offset + i + 1),
			l.Platform.ID,
			l.Title,
			strconv.FormatFloat(l.Price, 'f', 2, 64),
			l.Currency,
			strconv.FormatFloat(l.Rating, 'f', 1, 64),
			strconv.Itoa(l.ReviewCount),
			string(l.Availability),
			strconv.FormatFloat(l.OverallScore, 'f', 2, 64),
			l.URL,
			l.FetchedAt.UTC().Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
