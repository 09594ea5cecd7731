// Package api exposes the HTTP interface for the company intelligence
// service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/cache"
	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/metrics"
)

// Analyzer runs one company analysis.
type Analyzer interface {
	Analyze(ctx context.Context, baseURL string) *intel.CompanyRecord
}

// Discoverer runs one discovery batch.
type Discoverer interface {
	Discover(ctx context.Context, urls []string, maxCompanies int) (*intel.DiscoveryResult, error)
}

// Reporter builds a prose research report for a company name.
type Reporter interface {
	Build(ctx context.Context, companyName, model string) (string, error)
}

// Config tunes the HTTP surface.
type Config struct {
	RequestTimeout time.Duration
	AuthEnabled    bool
	APIKey         string
	// DefaultListingURLs and DefaultMaxCompanies complete a discover request
	// before it is keyed against the cache.
	DefaultListingURLs  []string
	DefaultMaxCompanies int
}

// Deps carries the collaborators the server routes requests to. Cache stores
// may be nil, which disables memoization for that operation family.
type Deps struct {
	Analyzer      Analyzer
	Discoverer    Discoverer
	Reporter      Reporter
	Searcher      intel.Searcher
	Chat          intel.ChatCompleter
	AnalyzeCache  cache.Store
	DiscoverCache cache.Store
	ReportCache   cache.Store
	IDGen         intel.IDGenerator
}

// Server wires HTTP handlers to the analysis, discovery and report
// pipelines.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg Config, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Minute
	}
	if cfg.DefaultMaxCompanies <= 0 {
		cfg.DefaultMaxCompanies = 30
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))
	if cfg.AuthEnabled {
		r.Use(s.apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.analyze)
		r.Post("/discover", s.discover)
		r.Get("/search", s.search)
		r.Post("/model", s.model)
		r.Post("/report", s.report)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type analyzeRequest struct {
	URL string `json:"url"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	params := map[string]any{"url": req.URL}
	var cached intel.CompanyRecord
	if s.cachedResult(r.Context(), s.deps.AnalyzeCache, params, &cached) {
		s.writeJSON(w, http.StatusOK, &cached)
		return
	}

	record := s.deps.Analyzer.Analyze(r.Context(), req.URL)
	s.saveResult(r.Context(), s.deps.AnalyzeCache, params, record)
	s.writeJSON(w, http.StatusOK, record)
}

type discoverRequest struct {
	URLs         []string `json:"urls"`
	MaxCompanies int      `json:"max_companies"`
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	req := discoverRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if len(req.URLs) == 0 {
		req.URLs = s.cfg.DefaultListingURLs
	}
	if req.MaxCompanies <= 0 {
		req.MaxCompanies = s.cfg.DefaultMaxCompanies
	}
	if len(req.URLs) == 0 {
		s.writeError(w, http.StatusBadRequest, "urls are required")
		return
	}

	urls := make([]any, len(req.URLs))
	for i, u := range req.URLs {
		urls[i] = u
	}
	params := map[string]any{"urls": urls, "max_companies": req.MaxCompanies}
	var cached intel.DiscoveryResult
	if s.cachedResult(r.Context(), s.deps.DiscoverCache, params, &cached) {
		s.writeJSON(w, http.StatusOK, &cached)
		return
	}

	result, err := s.deps.Discoverer.Discover(r.Context(), req.URLs, req.MaxCompanies)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.saveResult(r.Context(), s.deps.DiscoverCache, params, result)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	results, err := s.deps.Searcher.Search(r.Context(), query)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

type modelRequest struct {
	Prompt    string  `json:"prompt"`
	Model     string  `json:"model"`
	MaxTokens int     `json:"max_tokens"`
	Temp      float64 `json:"temperature"`
}

func (s *Server) model(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	resp, err := s.deps.Chat.Complete(r.Context(), intel.ChatRequest{
		Model:       req.Model,
		Messages:    []intel.ChatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temp,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type reportRequest struct {
	CompanyName string `json:"company_name"`
	Model       string `json:"model"`
}

type reportResponse struct {
	Content string `json:"content"`
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.CompanyName) == "" {
		s.writeError(w, http.StatusBadRequest, "company_name is required")
		return
	}
	if req.Model == "" {
		req.Model = "research"
	}

	params := map[string]any{"company_name": req.CompanyName, "model": req.Model}
	var cached reportResponse
	if s.cachedResult(r.Context(), s.deps.ReportCache, params, &cached) {
		s.writeJSON(w, http.StatusOK, cached)
		return
	}

	content, err := s.deps.Reporter.Build(r.Context(), req.CompanyName, req.Model)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := reportResponse{Content: content}
	s.saveResult(r.Context(), s.deps.ReportCache, params, resp)
	s.writeJSON(w, http.StatusOK, resp)
}

// cachedResult loads a memoized result into out. Cache failures degrade to a
// miss.
func (s *Server) cachedResult(ctx context.Context, store cache.Store, params map[string]any, out any) bool {
	if store == nil {
		return false
	}
	entry, ok, err := store.Get(ctx, params)
	if err != nil {
		s.logger.Warn("cache lookup failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := cache.DecodeResult(entry, out); err != nil {
		s.logger.Warn("cached result undecodable, recomputing", zap.Error(err))
		return false
	}
	return true
}

func (s *Server) saveResult(ctx context.Context, store cache.Store, params map[string]any, result any) {
	if store == nil {
		return
	}
	if err := store.Put(ctx, params, result); err != nil {
		s.logger.Warn("cache save failed", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
