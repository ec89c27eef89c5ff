package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"shopscout/models"
)

const listingColumns = 12

// PostgresWriter archives search results to PostgreSQL: one search_runs row
// per search and one search_listings row per listing on the returned page.
type PostgresWriter struct {
	db *sql.DB
}

// ArchivedSearch is one row of search_runs.
type ArchivedSearch struct {
	SearchID    string    `json:"searchId"`
	Query       string    `json:"query"`
	CountryCode string    `json:"countryCode"`
	TotalFound  int       `json:"totalFound"`
	ElapsedMs   int64     `json:"elapsedMs"`
	ErrorCount  int       `json:"errorCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS search_runs (
			search_id    UUID PRIMARY KEY,
			query        TEXT        NOT NULL,
			country      VARCHAR(2)  NOT NULL,
			total_found  INTEGER     NOT NULL DEFAULT 0,
			elapsed_ms   BIGINT      NOT NULL DEFAULT 0,
			errors       JSONB       NOT NULL DEFAULT '[]',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS search_listings (
			search_id     UUID          NOT NULL REFERENCES search_runs(search_id) ON DELETE CASCADE,
			rank          INTEGER       NOT NULL,
			listing_id    TEXT          NOT NULL,
			platform      VARCHAR(50)   NOT NULL,
			title         TEXT          NOT NULL,
			price         NUMERIC(12,2) NOT NULL,
			currency      VARCHAR(3)    NOT NULL,
			rating        NUMERIC(3,1)  NOT NULL DEFAULT 0,
			review_count  INTEGER       NOT NULL DEFAULT 0,
			availability  VARCHAR(20)   NOT NULL,
			overall_score NUMERIC(5,2)  NOT NULL,
			url           TEXT          NOT NULL,
			PRIMARY KEY (search_id, rank)
		);

		CREATE INDEX IF NOT EXISTS idx_search_runs_created  ON search_runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_search_listings_platform ON search_listings(platform);
	`)
	return err
}

// Write stores the result in a single transaction. Writing the same
// search ID twice is a no-op.
func (pw *PostgresWriter) Write(ctx context.Context, r *models.SearchResult) error {
	if _, err := uuid.Parse(r.SearchID); err != nil {
		return fmt.Errorf("postgres: invalid search id %q: %w", r.SearchID, err)
	}
	errs, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("postgres: encode errors: %w", err)
	}

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		INSERT INTO search_runs (search_id, query, country, total_found, elapsed_ms, errors)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (search_id) DO NOTHING
	`, r.SearchID, r.Query, r.CountryCode, r.TotalFound, r.ElapsedMs, string(errs))
	if err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	const batchSize = 50
	offset := (r.Page - 1) * r.PageSize
	for i := 0; i < len(r.Listings); i += batchSize {
		end := i + batchSize
		if end > len(r.Listings) {
			end = len(r.Listings)
		}
		query, args := listingInsert(r.SearchID, offset+i+1, r.Listings[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert listings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// listingInsert builds a multi-row INSERT for batch, ranking from firstRank.
func listingInsert(searchID string, firstRank int, batch []models.ScoredListing) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*listingColumns)

	for idx, l := range batch {
		base := idx * listingColumns
		ph := make([]string, listingColumns)
		for c := range ph {
			ph[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			searchID, firstRank+idx, l.ID, l.Platform.ID, l.Title, l.Price, l.Currency,
			l.Rating, l.ReviewCount, string(l.Availability), l.OverallScore, l.URL)
	}

	query := fmt.Sprintf(`
		INSERT INTO search_listings (search_id, rank, listing_id, platform, title, price, currency,
			rating, review_count, availability, overall_score, url)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// Recent returns the latest archived searches, newest first.
func (pw *PostgresWriter) Recent(ctx context.Context, limit int) ([]ArchivedSearch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := pw.db.QueryContext(ctx, `
		SELECT search_id, query, country, total_found, elapsed_ms,
		       jsonb_array_length(errors), created_at
		FROM search_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent: %w", err)
	}
	defer rows.Close()

	out := []ArchivedSearch{}
	for rows.Next() {
		var s ArchivedSearch
		if err := rows.Scan(&s.SearchID, &s.Query, &s.CountryCode, &s.TotalFound,
			&s.ElapsedMs, &s.ErrorCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
