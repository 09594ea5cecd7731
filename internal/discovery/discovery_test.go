package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/extraction"
	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/publisher/memory"
)

type listingSession struct {
	listings map[string]intel.ExtractionResult
}

func (s *listingSession) Extract(_ context.Context, url string, _ intel.Directive) (intel.ExtractionResult, error) {
	result, ok := s.listings[url]
	if !ok {
		return intel.ExtractionResult{}, errors.New("unknown listing")
	}
	return result, nil
}

func (s *listingSession) Close() error { return nil }

type listingCapability struct {
	session *listingSession
}

func (c *listingCapability) NewSession(context.Context) (intel.ExtractionSession, error) {
	return c.session, nil
}

type mapSearcher struct {
	mu       sync.Mutex
	websites map[string]string
	queries  []string
}

func (s *mapSearcher) Search(_ context.Context, query string) (*intel.SearchResults, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	for name, website := range s.websites {
		if query == name+" official website" {
			return &intel.SearchResults{Organic: []intel.SearchHit{{Link: website}}}, nil
		}
	}
	return &intel.SearchResults{}, nil
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	analyzed []string
	fail     map[string]bool
}

func (a *fakeAnalyzer) Analyze(_ context.Context, baseURL string) *intel.CompanyRecord {
	a.mu.Lock()
	a.analyzed = append(a.analyzed, baseURL)
	a.mu.Unlock()
	if a.fail[baseURL] {
		return intel.SentinelRecord(baseURL, "analysis blew up")
	}
	return &intel.CompanyRecord{
		CompanyName:  "Analyzed " + baseURL,
		Website:      baseURL,
		JobPositions: []string{"Scraped Role"},
	}
}

func listingItem(name string, jobs ...any) map[string]any {
	return map[string]any{
		"index":   1.0,
		"tags":    []any{"company"},
		"content": []any{name},
		"jobs":    jobs,
	}
}

func newOrchestrator(cfg Config, capability intel.ExtractionCapability, searcher intel.Searcher, analyzer CompanyAnalyzer, pub intel.Publisher) *Orchestrator {
	extractor := extraction.NewClient(extraction.Config{
		MaxAttempts: 1,
		BackoffBase: time.Millisecond,
		BackoffMax:  time.Millisecond,
		Timeout:     time.Second,
	}, zap.NewNop())
	return New(cfg, capability, extractor, searcher, analyzer, pub, zap.NewNop())
}

func TestDiscoverPartitionsCandidates(t *testing.T) {
	t.Parallel()

	capability := &listingCapability{session: &listingSession{listings: map[string]intel.ExtractionResult{
		"https://list.example": {Success: true, Content: []any{
			listingItem("Acme", "Engineer"),
			listingItem("Ghost Co"),
			listingItem("Broken Inc"),
		}},
	}}}
	searcher := &mapSearcher{websites: map[string]string{
		"Acme":       "https://acme.example",
		"Broken Inc": "https://broken.example",
	}}
	analyzer := &fakeAnalyzer{fail: map[string]bool{"https://broken.example": true}}
	pub := memory.New()

	orch := newOrchestrator(Config{Topic: "company-discoveries"}, capability, searcher, analyzer, pub)
	result, err := orch.Discover(context.Background(), []string{"https://list.example"}, 10)
	require.NoError(t, err)

	require.Len(t, result.DiscoveredCompanies, 1)
	require.Equal(t, "Analyzed https://acme.example", result.DiscoveredCompanies[0].CompanyName)
	// Listing-page jobs replace whatever the analysis scraped.
	require.Equal(t, []string{"Engineer"}, result.DiscoveredCompanies[0].JobPositions)

	require.Len(t, result.FailedCompanies, 2)
	names := []string{result.FailedCompanies[0].CompanyName, result.FailedCompanies[1].CompanyName}
	require.ElementsMatch(t, []string{"Ghost Co", "Broken Inc"}, names)

	// Ghost Co has no website, so it must never reach analysis.
	require.ElementsMatch(t, []string{"https://acme.example", "https://broken.example"}, analyzer.analyzed)

	events := pub.Published("company-discoveries")
	require.Len(t, events, 1)
}

func TestDiscoverCapsCombinedCandidates(t *testing.T) {
	t.Parallel()

	firstPage := make([]any, 0, 3)
	secondPage := make([]any, 0, 3)
	websites := map[string]string{}
	for i := 0; i < 3; i++ {
		nameA := fmt.Sprintf("A%d", i)
		nameB := fmt.Sprintf("B%d", i)
		firstPage = append(firstPage, listingItem(nameA))
		secondPage = append(secondPage, listingItem(nameB))
		websites[nameA] = fmt.Sprintf("https://a%d.example", i)
		websites[nameB] = fmt.Sprintf("https://b%d.example", i)
	}
	capability := &listingCapability{session: &listingSession{listings: map[string]intel.ExtractionResult{
		"https://one.example": {Success: true, Content: firstPage},
		"https://two.example": {Success: true, Content: secondPage},
	}}}
	analyzer := &fakeAnalyzer{}

	orch := newOrchestrator(Config{}, capability, &mapSearcher{websites: websites}, analyzer, nil)
	result, err := orch.Discover(context.Background(), []string{"https://one.example", "https://two.example"}, 4)
	require.NoError(t, err)

	total := len(result.DiscoveredCompanies) + len(result.FailedCompanies)
	require.Equal(t, 4, total)
	require.Len(t, analyzer.analyzed, 4)
}

func TestDiscoverPerListingCap(t *testing.T) {
	t.Parallel()

	items := make([]any, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, listingItem(fmt.Sprintf("C%d", i)))
	}
	capability := &listingCapability{session: &listingSession{listings: map[string]intel.ExtractionResult{
		"https://list.example": {Success: true, Content: items},
	}}}

	orch := newOrchestrator(Config{}, capability, &mapSearcher{}, &fakeAnalyzer{}, nil)
	result, err := orch.Discover(context.Background(), []string{"https://list.example"}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, len(result.DiscoveredCompanies)+len(result.FailedCompanies))
}

func TestDiscoverFailedListingContributesNothing(t *testing.T) {
	t.Parallel()

	capability := &listingCapability{session: &listingSession{listings: map[string]intel.ExtractionResult{
		"https://good.example": {Success: true, Content: []any{listingItem("Acme")}},
	}}}
	searcher := &mapSearcher{websites: map[string]string{"Acme": "https://acme.example"}}

	orch := newOrchestrator(Config{}, capability, searcher, &fakeAnalyzer{}, nil)
	result, err := orch.Discover(context.Background(), []string{"https://good.example", "https://dead.example"}, 10)
	require.NoError(t, err)
	require.Len(t, result.DiscoveredCompanies, 1)
	require.Empty(t, result.FailedCompanies)
}

func TestDiscoverNoListingURLs(t *testing.T) {
	t.Parallel()

	orch := newOrchestrator(Config{}, &listingCapability{session: &listingSession{}}, &mapSearcher{}, &fakeAnalyzer{}, nil)
	_, err := orch.Discover(context.Background(), nil, 10)
	require.Error(t, err)
}

func TestDiscoverDefaultListingURLs(t *testing.T) {
	t.Parallel()

	capability := &listingCapability{session: &listingSession{listings: map[string]intel.ExtractionResult{
		"https://default.example": {Success: true, Content: []any{listingItem("Acme")}},
	}}}
	searcher := &mapSearcher{websites: map[string]string{"Acme": "https://acme.example"}}

	orch := newOrchestrator(Config{DefaultListingURLs: []string{"https://default.example"}},
		capability, searcher, &fakeAnalyzer{}, nil)
	result, err := orch.Discover(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, result.DiscoveredCompanies, 1)
}

func TestParseListingItemsSkipsMalformed(t *testing.T) {
	t.Parallel()

	items := []intel.Fragment{
		{"content": []any{"Acme"}, "jobs": []any{"Engineer", 3.0, ""}},
		{"content": []any{}},
		{"content": "not a list"},
		{"tags": []any{"company"}},
		{"content": []any{42.0}},
	}
	candidates := parseListingItems(items, 10)
	require.Len(t, candidates, 1)
	require.Equal(t, "Acme", candidates[0].CompanyName)
	require.Equal(t, []string{"Engineer"}, candidates[0].JobPositions)
}
