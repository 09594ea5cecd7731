package cache

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyIsOrderInsensitive(t *testing.T) {
	t.Parallel()

	a, err := Key(map[string]any{"url": "https://example.com", "model": "gpt-4o", "depth": 2})
	require.NoError(t, err)
	b, err := Key(map[string]any{"depth": 2, "model": "gpt-4o", "url": "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestKeyCoercesURLs(t *testing.T) {
	t.Parallel()

	parsed, err := url.Parse("https://example.com/about")
	require.NoError(t, err)

	fromString, err := Key(map[string]any{"url": "https://example.com/about"})
	require.NoError(t, err)
	fromURL, err := Key(map[string]any{"url": parsed})
	require.NoError(t, err)
	fromValue, err := Key(map[string]any{"url": *parsed})
	require.NoError(t, err)

	require.Equal(t, fromString, fromURL)
	require.Equal(t, fromString, fromValue)
}

func TestKeyCoercesNestedValues(t *testing.T) {
	t.Parallel()

	parsed, err := url.Parse("https://example.com")
	require.NoError(t, err)

	a, err := Key(map[string]any{"urls": []any{parsed, "https://other.example"}})
	require.NoError(t, err)
	b, err := Key(map[string]any{"urls": []any{"https://example.com", "https://other.example"}})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestKeyDistinguishesValues(t *testing.T) {
	t.Parallel()

	a, err := Key(map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	b, err := Key(map[string]any{"url": "https://example.org"})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
