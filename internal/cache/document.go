package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/metrics"
)

// Backend persists one namespace's cache document as a single blob,
// rewritten in full on every write.
type Backend interface {
	// Load returns the current document, or nil when none exists yet.
	Load(ctx context.Context) ([]byte, error)
	Store(ctx context.Context, data []byte) error
}

// DocumentStore implements Store over a Backend, holding the full
// key→entry mapping in memory and rewriting the backing document on every
// Put. A corrupt or missing document degrades to an empty cache.
type DocumentStore struct {
	namespace string
	backend   Backend
	clock     intel.Clock
	logger    *zap.Logger

	mu      sync.Mutex
	entries map[string]Entry
}

// NewDocumentStore loads the namespace document and returns a ready store.
func NewDocumentStore(
	ctx context.Context,
	namespace string,
	backend Backend,
	clock intel.Clock,
	logger *zap.Logger,
) *DocumentStore {
	s := &DocumentStore{
		namespace: namespace,
		backend:   backend,
		clock:     clock,
		logger:    logger,
		entries:   map[string]Entry{},
	}
	data, err := backend.Load(ctx)
	if err != nil {
		logger.Warn("cache load failed, starting empty",
			zap.String("namespace", namespace), zap.Error(err))
		return s
	}
	if len(data) == 0 {
		return s
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		logger.Warn("cache document corrupt, starting empty",
			zap.String("namespace", namespace), zap.Error(err))
		s.entries = map[string]Entry{}
	}
	return s
}

// Get returns the memoized entry for the parameters, if any.
func (s *DocumentStore) Get(_ context.Context, params map[string]any) (*Entry, bool, error) {
	key, err := Key(params)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	entry, ok := s.entries[key]
	s.mu.Unlock()
	metrics.ObserveCache(s.namespace, ok)
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put memoizes a result and rewrites the backing document. Persistence
// failures are logged, never surfaced: the in-memory entry stays usable for
// the life of the process.
func (s *DocumentStore) Put(ctx context.Context, params map[string]any, result any) error {
	key, err := Key(params)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cache result: %w", err)
	}

	s.mu.Lock()
	s.entries[key] = Entry{
		Params:    coerceValue(params).(map[string]any),
		Result:    raw,
		Timestamp: s.clock.Now(),
	}
	doc, err := json.Marshal(s.entries)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal cache document: %w", err)
	}

	if err := s.backend.Store(ctx, doc); err != nil {
		s.logger.Warn("cache persist failed",
			zap.String("namespace", s.namespace), zap.Error(err))
	}
	return nil
}
