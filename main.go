package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shopscout/api"
	"shopscout/config"
	"shopscout/fetcher"
	"shopscout/models"
	"shopscout/services"
	"shopscout/sources"
	"shopscout/storage"
	"shopscout/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetDebug(cfg.LogDebug)

	query := flag.String("q", "", "search query")
	country := flag.String("country", cfg.DefaultCountry, "ISO country code")
	sortBy := flag.String("sort", string(models.SortRelevance), "relevance|price_low|price_high|rating|reviews|newest")
	page := flag.Int("page", 1, "result page")
	limit := flag.Int("limit", cfg.PageSize, "listings per page")
	minPrice := flag.Float64("min-price", 0, "minimum price")
	maxPrice := flag.Float64("max-price", 0, "maximum price (0 = no limit)")
	minRating := flag.Float64("min-rating", 0, "minimum rating (0-5)")
	inStock := flag.Bool("in-stock", false, "only in-stock listings")
	category := flag.String("category", "", "category filter")
	brand := flag.String("brand", "", "brand filter")
	serve := flag.Bool("serve", false, "run the HTTP API instead of a single search")
	flag.Parse()

	logger.Info("=== ShopScout starting ===")
	logger.Info("Config — country: %s | concurrency: %d | source timeout: %dms | rate: %dms",
		cfg.DefaultCountry, cfg.MaxConcurrency, cfg.SourceTimeoutMs, cfg.RateLimitMs)

	catalog, err := config.LoadCatalogOrDefault(cfg.CatalogPath)
	if err != nil {
		logger.Error("Failed to load catalog: %v", err)
		os.Exit(1)
	}

	static := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		RateLimitMs: cfg.RateLimitMs,
		MaxRetries:  cfg.MaxRetries,
	}, logger)

	var browser fetcher.PageFetcher
	if cfg.UseBrowser {
		bf := fetcher.NewBrowserFetcher(cfg.ChromeBin, cfg.RateLimitMs, cfg.MaxRetries, logger)
		defer bf.Close()
		browser = bf
	}

	registry := sources.NewRegistry(catalog, cfg, static, browser, logger)
	engine := services.NewEngine(
		services.EngineConfig{
			DefaultCountry:  cfg.DefaultCountry,
			MinQueryLength:  cfg.MinQueryLength,
			DefaultPageSize: cfg.PageSize,
			MaxPageSize:     100,
		},
		registry,
		services.NewOrchestrator(cfg.SourceTimeout(), cfg.MaxConcurrency, logger),
		services.NewFacetService(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, archive := openSinks(ctx, cfg, logger)
	defer func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}()

	if *serve {
		var history api.HistoryStore
		if archive != nil {
			history = archive
		}
		if err := runServer(ctx, cfg.HTTPAddr, api.NewHandler(engine, history, logger, sinks...), logger); err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		return
	}

	if strings.TrimSpace(*query) == "" {
		fmt.Fprintln(os.Stderr, "usage: shopscout -q <query> [-country EG] [-sort price_low] ... | -serve")
		os.Exit(2)
	}

	req := models.SearchRequest{
		Text:        *query,
		CountryCode: *country,
		Page:        *page,
		PageSize:    *limit,
		Filters: models.Filters{
			PriceRange:  models.PriceRange{Min: *minPrice, Max: *maxPrice},
			MinRating:   *minRating,
			InStockOnly: *inStock,
			SortBy:      models.SortBy(*sortBy),
			Category:    *category,
			Brand:       *brand,
		},
	}

	result, err := engine.Search(ctx, req)
	if err != nil {
		if services.IsValidation(err) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		logger.Error("Search failed: %v", err)
		os.Exit(1)
	}

	for _, s := range sinks {
		if err := s.Write(ctx, result); err != nil {
			logger.Error("Export failed: %v", err)
		}
	}

	symbol := ""
	if c, ok := catalog.Country(result.CountryCode); ok {
		symbol = c.CurrencySymbol
	}
	services.NewFacetService(logger).Print(os.Stdout, result, symbol)

	if cfg.CSVOutputPath != "" {
		fmt.Printf("  Done. Ranked page → %s\n\n", cfg.CSVOutputPath)
	}
}

// openSinks opens the configured exporters. A sink that cannot be opened is
// logged and skipped.
func openSinks(ctx context.Context, cfg *config.Config, logger *utils.Logger) ([]storage.ResultWriter, *storage.PostgresWriter) {
	var sinks []storage.ResultWriter

	if cfg.CSVOutputPath != "" {
		w, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
		} else {
			sinks = append(sinks, w)
		}
	}

	var archive *storage.PostgresWriter
	if cfg.ArchiveEnabled {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		pw, err := storage.NewPostgresWriter(pctx, cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
		} else {
			sinks = append(sinks, pw)
			archive = pw
		}
	}
	return sinks, archive
}

func runServer(ctx context.Context, addr string, h *api.Handler, logger *utils.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown error: %v", err)
		}
	}()

	logger.Info("API listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
