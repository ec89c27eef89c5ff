// Package api exposes the search engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shopscout/models"
	"shopscout/services"
	"shopscout/storage"
	"shopscout/utils"
)

const maxBodyBytes = 1 << 20

// Searcher runs one search.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)
}

// HistoryStore lists archived searches.
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]storage.ArchivedSearch, error)
}

// Handler serves /api/search and friends.
type Handler struct {
	searcher Searcher
	sinks    []storage.ResultWriter
	history  HistoryStore
	logger   *utils.Logger
}

// NewHandler creates a Handler. Every successful search is also written to
// sinks; a failing sink is logged and never fails the request. history may
// be nil, in which case /api/history is not served.
func NewHandler(searcher Searcher, history HistoryStore, logger *utils.Logger, sinks ...storage.ResultWriter) *Handler {
	return &Handler{searcher: searcher, sinks: sinks, history: history, logger: logger}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Meta    *meta  `json:"meta,omitempty"`
	Error   string `json:"error,omitempty"`
}

type meta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"hasNext"`
}

// Routes returns the mux with every endpoint registered and request logging
// applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", h.Search)
	if h.history != nil {
		mux.HandleFunc("/api/history", h.History)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return loggingMiddleware(h.logger, mux)
}

// Search handles GET (query string) and POST (JSON body) searches.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var (
		req models.SearchRequest
		err error
	)
	switch r.Method {
	case http.MethodGet:
		req, err = requestFromQuery(r)
	case http.MethodPost:
		req, err = requestFromBody(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Error: "method not allowed"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: err.Error()})
		return
	}

	result, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		if services.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, envelope{Error: err.Error()})
			return
		}
		h.logger.Error("[api] search %q failed: %v", req.Text, err)
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "internal server error"})
		return
	}

	h.export(r.Context(), result)

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    result,
		Meta: &meta{
			Page:    result.Page,
			Limit:   result.PageSize,
			Total:   result.TotalFound,
			HasNext: result.HasNext,
		},
	})
}

// History lists recently archived searches.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Error: "method not allowed"})
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: err.Error()})
		return
	}
	runs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("[api] history: %v", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: runs})
}

func (h *Handler) export(ctx context.Context, result *models.SearchResult) {
	for _, s := range h.sinks {
		if err := s.Write(ctx, result); err != nil {
			h.logger.Warn("[api] export of search %s failed: %v", result.SearchID, err)
		}
	}
}

func requestFromQuery(r *http.Request) (models.SearchRequest, error) {
	q := r.URL.Query()
	req := models.SearchRequest{
		Text:        q.Get("q"),
		CountryCode: q.Get("country"),
		Filters: models.Filters{
			SortBy:   models.SortBy(q.Get("sortBy")),
			Category: q.Get("category"),
			Brand:    q.Get("brand"),
		},
	}

	var err error
	if req.Page, err = intParam(r, "page"); err != nil {
		return req, err
	}
	if req.PageSize, err = intParam(r, "limit"); err != nil {
		return req, err
	}
	if req.Filters.PriceRange.Min, err = floatParam(r, "minPrice"); err != nil {
		return req, err
	}
	if req.Filters.PriceRange.Max, err = floatParam(r, "maxPrice"); err != nil {
		return req, err
	}
	if req.Filters.MinRating, err = floatParam(r, "minRating"); err != nil {
		return req, err
	}
	if v := q.Get("inStockOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("inStockOnly must be true or false")
		}
		req.Filters.InStockOnly = b
	}
	return req, nil
}

func requestFromBody(w http.ResponseWriter, r *http.Request) (models.SearchRequest, error) {
	var req models.SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, errors.New("invalid JSON payload")
	}
	return req, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func loggingMiddleware(logger *utils.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &logResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r)
		logger.Info("[api] %s %s %d %s", r.Method, r.URL.Path, lrw.status, time.Since(start).Round(time.Millisecond))
	})
}

type logResponseWriter struct {
	http.ResponseWriter
	status int
}

func (l *logResponseWriter) WriteHeader(statusCode int) {
	l.status = statusCode
	l.ResponseWriter.WriteHeader(statusCode)
}
