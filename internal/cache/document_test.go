package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/storage/memory"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type failingBackend struct {
	loadErr  error
	storeErr error
	data     []byte
}

func (b *failingBackend) Load(context.Context) ([]byte, error) {
	return b.data, b.loadErr
}

func (b *failingBackend) Store(_ context.Context, data []byte) error {
	if b.storeErr != nil {
		return b.storeErr
	}
	b.data = data
	return nil
}

func TestDocumentStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewDocumentStore(ctx, "analyzer_result", backend, fixedClock{at: now}, zap.NewNop())

	params := map[string]any{"url": "https://example.com"}

	_, ok, err := store.Get(ctx, params)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(ctx, params, map[string]any{"company_name": "Acme"}))

	entry, ok, err := store.Get(ctx, params)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, now, entry.Timestamp)

	var result map[string]any
	require.NoError(t, DecodeResult(entry, &result))
	require.Equal(t, "Acme", result["company_name"])
}

func TestDocumentStoreSurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := NewDocumentStore(ctx, "analyzer_result", backend, fixedClock{at: now}, zap.NewNop())
	params := map[string]any{"url": "https://example.com"}
	require.NoError(t, first.Put(ctx, params, map[string]any{"company_name": "Acme"}))

	second := NewDocumentStore(ctx, "analyzer_result", backend, fixedClock{at: now}, zap.NewNop())
	entry, ok, err := second.Get(ctx, params)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, now, entry.Timestamp)
}

func TestDocumentStoreCorruptDocumentStartsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &failingBackend{data: []byte("not json")}
	store := NewDocumentStore(ctx, "analyzer_result", backend, fixedClock{at: time.Now()}, zap.NewNop())

	_, ok, err := store.Get(ctx, map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDocumentStorePersistFailureKeepsEntryUsable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &failingBackend{storeErr: errors.New("bucket unavailable")}
	store := NewDocumentStore(ctx, "analyzer_result", backend, fixedClock{at: time.Now()}, zap.NewNop())

	params := map[string]any{"url": "https://example.com"}
	require.NoError(t, store.Put(ctx, params, "result"))

	_, ok, err := store.Get(ctx, params)
	require.NoError(t, err)
	require.True(t, ok)
}
