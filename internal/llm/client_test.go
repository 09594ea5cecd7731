package llm

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

func TestCompleteSendsRequestAndDecodesResponse(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq intel.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello"}},
			},
		})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Model: "gpt-3.5-turbo-0125", MaxTokens: 4000},
		StaticToken("sk-test"), zap.NewNop())
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), intel.ChatRequest{
		Messages: []intel.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Text())
	require.Equal(t, "Bearer sk-test", gotAuth)
	require.Equal(t, "gpt-3.5-turbo-0125", gotReq.Model)
	require.Equal(t, 4000, gotReq.MaxTokens)
}

func TestCompleteReturnsStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL}, StaticToken("sk-test"), zap.NewNop())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), intel.ChatRequest{
		Messages: []intel.ChatMessage{{Role: "user", Content: "hi"}},
	})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestResponseTextToleratesBareContent(t *testing.T) {
	t.Parallel()

	resp := &intel.ChatResponse{Choices: []intel.ChatChoice{{Content: "direct"}}}
	require.Equal(t, "direct", resp.Text())
}

func TestRoundRobinTokens(t *testing.T) {
	t.Parallel()

	sel, err := NewRoundRobinTokens([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, "a", sel.Token())
	require.Equal(t, "b", sel.Token())
	require.Equal(t, "c", sel.Token())
	require.Equal(t, "a", sel.Token())
}

func TestNewTokenSelector(t *testing.T) {
	t.Parallel()

	sel, err := NewTokenSelector("static", []string{"first", "second"})
	require.NoError(t, err)
	require.Equal(t, "first", sel.Token())
	require.Equal(t, "first", sel.Token())

	sel, err = NewTokenSelector("random", []string{"only"})
	require.NoError(t, err)
	require.Equal(t, "only", sel.Token())

	_, err = NewTokenSelector("weighted", []string{"x"})
	require.Error(t, err)

	_, err = NewTokenSelector("random", nil)
	require.Error(t, err)
}
