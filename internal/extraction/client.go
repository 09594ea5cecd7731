// Package extraction wraps the external crawler+extraction capability with a
// retry policy and canonical fragment shaping.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/llm"
	"github.com/companyscope/crawler/internal/metrics"
)

// Config tunes the retry policy around extraction calls.
type Config struct {
	// MaxAttempts is the total attempt ceiling, retries included.
	MaxAttempts int
	// BackoffBase is the delay before the first retry; it doubles per
	// attempt up to BackoffMax.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// Timeout bounds one attempt's wall clock.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 4 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	return c
}

// Failure is a typed extraction failure for one URL. It never aborts sibling
// extractions; callers log it and drop the URL.
type Failure struct {
	URL       string
	Attempts  int
	Transient bool
	Err       error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("extraction failed for %s after %d attempt(s): %v", f.URL, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Client retries transient extraction failures and normalizes the content
// shape before it reaches the merge engine.
type Client struct {
	cfg    Config
	logger *zap.Logger
}

// NewClient creates an extraction client with the given retry policy.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{cfg: cfg.withDefaults(), logger: logger}
}

// ExtractFragment extracts one page into a canonical fragment object.
func (c *Client) ExtractFragment(
	ctx context.Context,
	session intel.ExtractionSession,
	pageURL string,
	directive intel.Directive,
) (intel.Fragment, error) {
	result, err := c.extract(ctx, session, pageURL, directive)
	if err != nil {
		metrics.ObserveExtraction(string(directive.Mode), "failure")
		return nil, err
	}
	fragment, err := NormalizeFragment(result.Content)
	if err != nil {
		metrics.ObserveExtraction(string(directive.Mode), "failure")
		return nil, &Failure{URL: pageURL, Attempts: 1, Err: err}
	}
	metrics.ObserveExtraction(string(directive.Mode), "success")
	return fragment, nil
}

// ExtractList extracts a listing page into a slice of item objects.
func (c *Client) ExtractList(
	ctx context.Context,
	session intel.ExtractionSession,
	pageURL string,
	directive intel.Directive,
) ([]intel.Fragment, error) {
	result, err := c.extract(ctx, session, pageURL, directive)
	if err != nil {
		metrics.ObserveExtraction(string(directive.Mode), "failure")
		return nil, err
	}
	items, err := NormalizeList(result.Content)
	if err != nil {
		metrics.ObserveExtraction(string(directive.Mode), "failure")
		return nil, &Failure{URL: pageURL, Attempts: 1, Err: err}
	}
	metrics.ObserveExtraction(string(directive.Mode), "success")
	return items, nil
}

func (c *Client) extract(
	ctx context.Context,
	session intel.ExtractionSession,
	pageURL string,
	directive intel.Directive,
) (intel.ExtractionResult, error) {
	var lastErr error
	backoff := c.cfg.BackoffBase

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		result, err := session.Extract(attemptCtx, pageURL, directive)
		cancel()

		switch {
		case err == nil && result.Success:
			return result, nil
		case err == nil:
			// The capability answered but reported failure; its verdict is
			// final, no retry.
			return intel.ExtractionResult{}, &Failure{
				URL:      pageURL,
				Attempts: attempt,
				Err:      errors.New("capability reported unsuccessful extraction"),
			}
		case !Transient(err):
			return intel.ExtractionResult{}, &Failure{URL: pageURL, Attempts: attempt, Err: err}
		}

		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}
		c.logger.Debug("transient extraction failure, retrying",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return intel.ExtractionResult{}, &Failure{URL: pageURL, Attempts: attempt, Transient: true, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.BackoffMax {
			backoff = c.cfg.BackoffMax
		}
	}
	return intel.ExtractionResult{}, &Failure{
		URL:       pageURL,
		Attempts:  c.cfg.MaxAttempts,
		Transient: true,
		Err:       lastErr,
	}
}

// Transient reports whether an extraction error is worth retrying. Timeouts,
// connection resets and 408/429/5xx statuses qualify; other HTTP statuses and
// malformed bodies do not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.Code)
	}
	var httpErr *StatusError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Transport-level failure with no HTTP status.
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// StatusError is an HTTP-status failure surfaced by a capability adapter.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extraction capability returned status %d", e.Code)
}

// NormalizeFragment coerces the capability's polymorphic content into one
// canonical object. Accepted shapes: JSON-encoded string, single object, or
// list whose first element is an object.
func NormalizeFragment(content any) (intel.Fragment, error) {
	switch v := content.(type) {
	case nil:
		return nil, errors.New("extraction content is empty")
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("decode string content: %w", err)
		}
		return NormalizeFragment(decoded)
	case map[string]any:
		return intel.Fragment(v), nil
	case intel.Fragment:
		return v, nil
	case []any:
		if len(v) == 0 {
			return nil, errors.New("extraction content is an empty list")
		}
		return NormalizeFragment(v[0])
	default:
		return nil, fmt.Errorf("unsupported content shape %T", content)
	}
}

// NormalizeList coerces listing-page content into a slice of item objects.
// Non-object elements are dropped.
func NormalizeList(content any) ([]intel.Fragment, error) {
	switch v := content.(type) {
	case nil:
		return nil, errors.New("extraction content is empty")
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("decode string content: %w", err)
		}
		return NormalizeList(decoded)
	case map[string]any:
		return []intel.Fragment{intel.Fragment(v)}, nil
	case []any:
		items := make([]intel.Fragment, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				items = append(items, intel.Fragment(obj))
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported content shape %T", content)
	}
}
