// Package postgres provides a Postgres-backed cache store, one row per
// memoized key.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/cache"
	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/metrics"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StoreConfig controls the Postgres connection pool used for cache rows.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements cache.Store on a Postgres table keyed by
// (namespace, cache_key).
type Store struct {
	pool      pool
	table     string
	namespace string
	clock     intel.Clock
	logger    *zap.Logger
}

// NewStore creates a Postgres-backed cache store using the provided config.
func NewStore(
	ctx context.Context,
	cfg StoreConfig,
	namespace string,
	clock intel.Clock,
	logger *zap.Logger,
) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("cache.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewStoreWithPool(p, cfg.Table, namespace, clock, logger)
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewStoreWithPool(
	p pool,
	table string,
	namespace string,
	clock intel.Clock,
	logger *zap.Logger,
) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "cache_entries"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	return &Store{
		pool:      p,
		table:     table,
		namespace: namespace,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Get looks up the memoized entry for the parameters.
func (s *Store) Get(ctx context.Context, params map[string]any) (*cache.Entry, bool, error) {
	key, err := cache.Key(params)
	if err != nil {
		return nil, false, err
	}
	query := fmt.Sprintf(
		`SELECT params, result, created_at FROM %s WHERE namespace = $1 AND cache_key = $2`,
		s.table,
	)

	var paramsJSON, resultJSON []byte
	var createdAt time.Time
	row := s.pool.QueryRow(ctx, query, s.namespace, key)
	if err := row.Scan(&paramsJSON, &resultJSON, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.ObserveCache(s.namespace, false)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query cache row: %w", err)
	}

	entry := &cache.Entry{
		Result:    resultJSON,
		Timestamp: createdAt,
	}
	if err := json.Unmarshal(paramsJSON, &entry.Params); err != nil {
		// An unreadable row behaves like a miss rather than failing the
		// operation.
		s.logger.Warn("cache row corrupt, treating as miss",
			zap.String("namespace", s.namespace), zap.Error(err))
		metrics.ObserveCache(s.namespace, false)
		return nil, false, nil
	}
	metrics.ObserveCache(s.namespace, true)
	return entry, true, nil
}

// Put upserts the memoized entry. Persistence failures are logged and
// swallowed so the computed result still reaches the caller.
func (s *Store) Put(ctx context.Context, params map[string]any, result any) error {
	key, err := cache.Key(params)
	if err != nil {
		return err
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal cache params: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cache result: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (namespace, cache_key, params, result, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (namespace, cache_key)
DO UPDATE SET params = EXCLUDED.params, result = EXCLUDED.result, created_at = EXCLUDED.created_at`,
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query, s.namespace, key, paramsJSON, resultJSON, s.clock.Now()); err != nil {
		s.logger.Warn("cache persist failed",
			zap.String("namespace", s.namespace), zap.Error(err))
	}
	return nil
}
