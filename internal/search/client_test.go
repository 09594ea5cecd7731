package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/intel"
)

func TestSearchSendsQueryWithAPIKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "secret-key", r.Header.Get("X-API-KEY"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "acme corp", body["q"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]any{
				{"title": "Acme Corp", "link": "https://acme.example", "snippet": "We make anvils."},
			},
		})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, APIKey: "secret-key"}, zap.NewNop())
	require.NoError(t, err)

	results, err := client.Search(context.Background(), "acme corp")
	require.NoError(t, err)
	require.Len(t, results.Organic, 1)
	require.Equal(t, "https://acme.example", results.Organic[0].Link)
}

func TestSearchWithoutAPIKeyIsError(t *testing.T) {
	t.Parallel()

	client, err := New(Config{BaseURL: "https://google.serper.dev"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "acme corp")
	require.Error(t, err)
}

func TestSearchNon200IsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, APIKey: "secret-key"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "acme corp")
	require.Error(t, err)
}

type fakeSearcher struct {
	query   string
	results *intel.SearchResults
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*intel.SearchResults, error) {
	f.query = query
	return f.results, f.err
}

func TestResolveWebsiteReturnsFirstOrganicLink(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: &intel.SearchResults{Organic: []intel.SearchHit{
		{Link: "https://acme.example"},
		{Link: "https://other.example"},
	}}}

	link, err := ResolveWebsite(context.Background(), searcher, "Acme")
	require.NoError(t, err)
	require.Equal(t, "https://acme.example", link)
	require.Equal(t, "Acme official website", searcher.query)
}

func TestResolveWebsiteNoResults(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: &intel.SearchResults{}}

	_, err := ResolveWebsite(context.Background(), searcher, "Acme")
	require.ErrorIs(t, err, intel.ErrNoWebsite)
}
