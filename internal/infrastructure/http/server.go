package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
)

const maxBatchSymbols = 100

// Server exposes the quote engine over HTTP. Fetch behavior per data type
// (sources, defaults, pacing) comes from the wiring in bootstrap.
type Server struct {
	orch      *application.Orchestrator
	telemetry *application.Telemetry
	fallback  *application.FallbackStore
	cache     application.CacheStore
	sources   map[domain.DataType][]application.SourceFetcher
	defaults  map[domain.DataType]domain.QuoteRecord
	options   func(domain.DataType) application.FetchOptions
	ping      func(context.Context) error
}

func NewServer(
	orch *application.Orchestrator,
	telemetry *application.Telemetry,
	fallback *application.FallbackStore,
	cache application.CacheStore,
	sources map[domain.DataType][]application.SourceFetcher,
	defaults map[domain.DataType]domain.QuoteRecord,
	options func(domain.DataType) application.FetchOptions,
) *Server {
	if options == nil {
		options = func(domain.DataType) application.FetchOptions { return application.FetchOptions{} }
	}
	return &Server{
		orch:      orch,
		telemetry: telemetry,
		fallback:  fallback,
		cache:     cache,
		sources:   sources,
		defaults:  defaults,
		options:   options,
	}
}

// SetReadyCheck installs the dependency probe behind /readyz.
func (s *Server) SetReadyCheck(f func(context.Context) error) { s.ping = f }

func (s *Server) parseType(r *http.Request) (domain.DataType, []application.SourceFetcher, bool) {
	dt, err := domain.ParseDataType(r.URL.Query().Get("type"))
	if err != nil {
		return "", nil, false
	}
	srcs := s.sources[dt]
	return dt, srcs, len(srcs) > 0
}

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request, symbol string) {
	dt, srcs, ok := s.parseType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown or unsupported data type")
		return
	}
	if limited(r.Context()) {
		s.serveCachedOrReject(w, r, dt, symbol)
		return
	}
	opts := s.options(dt)
	opts.Refresh = r.URL.Query().Get("refresh") == "true"
	rec, err := s.orch.Fetch(r.Context(), application.FetchRequest{
		Symbol:   symbol,
		DataType: dt,
		Sources:  srcs,
		Defaults: s.defaults[dt],
		Options:  opts,
	})
	if err != nil {
		if errors.Is(err, application.ErrBadRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) getQuotes(w http.ResponseWriter, r *http.Request) {
	dt, srcs, ok := s.parseType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown or unsupported data type")
		return
	}
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}
	if len(symbols) > maxBatchSymbols {
		writeError(w, http.StatusBadRequest, "too many symbols")
		return
	}
	if limited(r.Context()) {
		s.serveCachedBatchOrReject(w, r, dt, symbols)
		return
	}
	opts := s.options(dt)
	opts.Refresh = r.URL.Query().Get("refresh") == "true"
	recs, err := s.orch.FetchBatch(r.Context(), application.BatchRequest{
		Symbols:  symbols,
		DataType: dt,
		Sources:  srcs,
		Defaults: s.defaults[dt],
		Options:  opts,
	})
	if err != nil {
		if errors.Is(err, application.ErrBadRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// serveCachedOrReject is the rate-limited degradation path: a cached value
// is still served, relabeled so the consumer can tell, but nothing new is
// fetched upstream.
func (s *Server) serveCachedOrReject(w http.ResponseWriter, r *http.Request, dt domain.DataType, symbol string) {
	if rec, ok := s.cachedRecord(r.Context(), dt, symbol); ok {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

func (s *Server) serveCachedBatchOrReject(w http.ResponseWriter, r *http.Request, dt domain.DataType, symbols []string) {
	out := make(map[string]domain.QuoteRecord, len(symbols))
	for _, sym := range symbols {
		if rec, ok := s.cachedRecord(r.Context(), dt, sym); ok {
			out[sym] = rec
		}
	}
	if len(out) == 0 {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cachedRecord(ctx context.Context, dt domain.DataType, symbol string) (domain.QuoteRecord, bool) {
	entry, found, err := s.cache.Get(ctx, domain.CacheKey(dt, symbol))
	if err != nil || !found {
		return domain.QuoteRecord{}, false
	}
	var rec domain.QuoteRecord
	if err := json.Unmarshal(entry.Data, &rec); err != nil {
		return domain.QuoteRecord{}, false
	}
	rec.Source = domain.SourceCacheRateLimited
	return rec, true
}

func (s *Server) getFailureStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = n
	}
	stats, err := s.telemetry.Statistics(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load failure statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "prefix is required")
		return
	}
	n, err := s.cache.Clear(r.Context(), prefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (s *Server) exportSnapshot(w http.ResponseWriter, r *http.Request) {
	n, err := s.fallback.ExportSnapshot(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrExportUnauthorized) {
			writeError(w, http.StatusUnauthorized, "export credential not configured")
			return
		}
		writeError(w, http.StatusInternalServerError, "snapshot export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"exported": n})
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}
