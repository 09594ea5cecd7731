// Package cache provides persistent memoization keyed by canonicalized
// request parameters. Every public operation consults its namespace store
// before recomputing, which makes the whole pipeline idempotent and cheap to
// re-run.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"
)

// Entry is one memoized result together with the parameters that produced it.
type Entry struct {
	Params    map[string]any  `json:"params"`
	Result    json.RawMessage `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store memoizes operation results. Implementations log and swallow
// persistence failures on Put: the computed result must still reach the
// caller even when the backing store is unavailable.
type Store interface {
	Get(ctx context.Context, params map[string]any) (*Entry, bool, error)
	Put(ctx context.Context, params map[string]any, result any) error
}

// Key derives the canonical cache key for a parameter mapping. The key is a
// JSON array of [name, value] pairs sorted by name, with URL-typed values
// coerced to strings first, so logically identical requests always collide
// regardless of insertion order or value representation.
func Key(params map[string]any) (string, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]any, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, [2]any{name, coerceValue(params[name])})
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("marshal cache key: %w", err)
	}
	return string(data), nil
}

func coerceValue(v any) any {
	switch val := v.(type) {
	case url.URL:
		return val.String()
	case *url.URL:
		if val == nil {
			return nil
		}
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = coerceValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = coerceValue(item)
		}
		return out
	default:
		return v
	}
}

// DecodeResult unmarshals a cached result into out.
func DecodeResult(entry *Entry, out any) error {
	if err := json.Unmarshal(entry.Result, out); err != nil {
		return fmt.Errorf("decode cached result: %w", err)
	}
	return nil
}
