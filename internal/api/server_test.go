package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/cache"
	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/storage/memory"
)

type stubAnalyzer struct {
	calls  int
	record *intel.CompanyRecord
}

func (a *stubAnalyzer) Analyze(context.Context, string) *intel.CompanyRecord {
	a.calls++
	return a.record
}

type stubDiscoverer struct {
	urls   []string
	max    int
	result *intel.DiscoveryResult
	err    error
}

func (d *stubDiscoverer) Discover(_ context.Context, urls []string, maxCompanies int) (*intel.DiscoveryResult, error) {
	d.urls = urls
	d.max = maxCompanies
	return d.result, d.err
}

type stubReporter struct {
	calls   int
	content string
	err     error
}

func (r *stubReporter) Build(context.Context, string, string) (string, error) {
	r.calls++
	return r.content, r.err
}

type stubSearcher struct {
	results *intel.SearchResults
	err     error
}

func (s *stubSearcher) Search(context.Context, string) (*intel.SearchResults, error) {
	return s.results, s.err
}

type stubChat struct {
	req  intel.ChatRequest
	resp *intel.ChatResponse
}

func (c *stubChat) Complete(_ context.Context, req intel.ChatRequest) (*intel.ChatResponse, error) {
	c.req = req
	return c.resp, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func newStore(t *testing.T, namespace string) cache.Store {
	t.Helper()
	return cache.NewDocumentStore(context.Background(), namespace, memory.New(),
		fixedClock{at: time.Now()}, zap.NewNop())
}

func newTestServer(deps Deps) *Server {
	return NewServer(deps, Config{
		DefaultListingURLs:  []string{"https://default.example"},
		DefaultMaxCompanies: 30,
	}, zap.NewNop())
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeHandlerCachesResult(t *testing.T) {
	t.Parallel()

	analyzer := &stubAnalyzer{record: &intel.CompanyRecord{CompanyName: "Acme", Website: "https://acme.example"}}
	server := newTestServer(Deps{
		Analyzer:     analyzer,
		AnalyzeCache: newStore(t, "analyzer_result"),
	})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/analyze", `{"url":"https://acme.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var record intel.CompanyRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	require.Equal(t, "Acme", record.CompanyName)

	// Second identical request is served from cache.
	rec = doJSON(t, server.Handler(), http.MethodPost, "/v1/analyze", `{"url":"https://acme.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, analyzer.calls)
}

func TestAnalyzeHandlerRejectsMissingURL(t *testing.T) {
	t.Parallel()

	server := newTestServer(Deps{Analyzer: &stubAnalyzer{}})
	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/analyze", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiscoverHandlerAppliesDefaults(t *testing.T) {
	t.Parallel()

	discoverer := &stubDiscoverer{result: &intel.DiscoveryResult{
		DiscoveredCompanies: []*intel.CompanyRecord{},
		FailedCompanies:     []intel.CandidateCompany{},
	}}
	server := newTestServer(Deps{Discoverer: discoverer})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/discover", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"https://default.example"}, discoverer.urls)
	require.Equal(t, 30, discoverer.max)
}

func TestDiscoverHandlerCachesByParams(t *testing.T) {
	t.Parallel()

	discoverer := &stubDiscoverer{result: &intel.DiscoveryResult{
		DiscoveredCompanies: []*intel.CompanyRecord{{CompanyName: "Acme"}},
		FailedCompanies:     []intel.CandidateCompany{},
	}}
	server := newTestServer(Deps{
		Discoverer:    discoverer,
		DiscoverCache: newStore(t, "discover_result"),
	})

	body := `{"urls":["https://list.example"],"max_companies":5}`
	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/discover", body)
	require.Equal(t, http.StatusOK, rec.Code)

	discoverer.result = nil
	discoverer.err = errors.New("should not be called again")
	rec = doJSON(t, server.Handler(), http.MethodPost, "/v1/discover", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result intel.DiscoveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.DiscoveredCompanies, 1)
}

func TestSearchHandler(t *testing.T) {
	t.Parallel()

	server := newTestServer(Deps{Searcher: &stubSearcher{results: &intel.SearchResults{
		Organic: []intel.SearchHit{{Link: "https://acme.example"}},
	}}})

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=acme", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var results intel.SearchResults
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results.Organic, 1)

	req = httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelHandler(t *testing.T) {
	t.Parallel()

	chat := &stubChat{resp: &intel.ChatResponse{Choices: []intel.ChatChoice{
		{Message: intel.ChatMessage{Role: "assistant", Content: "hello"}},
	}}}
	server := newTestServer(Deps{Chat: chat})

	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/model", `{"prompt":"hi","model":"gpt-4o"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gpt-4o", chat.req.Model)
	require.Equal(t, "hi", chat.req.Messages[0].Content)

	var resp intel.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hello", resp.Text())
}

func TestReportHandlerCachesContent(t *testing.T) {
	t.Parallel()

	reporter := &stubReporter{content: "Acme is a fine company."}
	server := newTestServer(Deps{
		Reporter:    reporter,
		ReportCache: newStore(t, "report_result"),
	})

	body := `{"company_name":"Acme"}`
	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/report", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Acme is a fine company.", resp["content"])

	rec = doJSON(t, server.Handler(), http.MethodPost, "/v1/report", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, reporter.calls)
}

func TestReportHandlerErrorIs500(t *testing.T) {
	t.Parallel()

	server := newTestServer(Deps{Reporter: &stubReporter{err: errors.New("research endpoint down")}})
	rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/report", `{"company_name":"Acme"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	server := NewServer(Deps{Analyzer: &stubAnalyzer{record: &intel.CompanyRecord{CompanyName: "Acme"}}},
		Config{AuthEnabled: true, APIKey: "sekrit"}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"url":"https://acme.example"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"url":"https://acme.example"}`))
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	server := newTestServer(Deps{})
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	server := newTestServer(Deps{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
