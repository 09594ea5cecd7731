// Package validator probes a company site for the fixed set of sub-pages
// worth crawling and returns them as normalized, verified URLs.
package validator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/metrics"
)

// candidatePaths is the fixed list of sub-pages probed for every company.
// The empty string is the base URL itself.
var candidatePaths = []string{
	"", "about", "about-us", "team", "our-team", "company",
	"solution", "contact", "how-it-works", "features",
	"careers", "jobs", "cases",
}

// notFoundMarkers classify a 200-ish body as a soft 404.
var notFoundMarkers = []string{
	"404", "not found", "page not found",
	"doesn't exist", "does not exist",
	"error 404", "404 error",
	"page could not be found",
	"page isn't available",
	"page no longer exists",
	"page has been removed",
	"sorry, we couldn't find that page",
	"page you're looking for isn't here",
}

// fallbackStatuses are the HEAD statuses that warrant a GET re-check instead
// of an immediate rejection.
var fallbackStatuses = map[int]bool{
	http.StatusForbidden:        true,
	http.StatusMethodNotAllowed: true,
	http.StatusNotFound:         true,
	http.StatusMovedPermanently: true,
	http.StatusFound:            true,
	http.StatusNotModified:      true,
}

// getValidStatuses are the GET statuses that keep a candidate alive pending
// the body-marker check.
var getValidStatuses = map[int]bool{
	http.StatusOK:               true,
	http.StatusNotModified:      true,
	http.StatusMovedPermanently: true,
	http.StatusFound:            true,
}

const maxProbeBody = 512 * 1024

// Config tunes the validator's probing behavior.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Validator finds the live sub-pages of a company website.
type Validator struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// New creates a validator with its own redirect-following HTTP client.
func New(cfg Config, logger *zap.Logger) *Validator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return &Validator{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// ValidURLs returns the normalized URLs worth crawling for a company site.
// The base URL is probed first and short-circuits the whole round when dead;
// remaining candidates are probed concurrently. Per-candidate failures are
// swallowed. The result is ordered base-first, then by candidate-path order,
// with duplicate normalized URLs collapsed.
func (v *Validator) ValidURLs(ctx context.Context, baseURL string) ([]string, error) {
	base, err := intel.NormalizeURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("normalize base URL: %w", err)
	}

	baseValid, ok := v.probe(ctx, base)
	if !ok {
		v.logger.Info("base URL unreachable, skipping sub-page probes",
			zap.String("base_url", base))
		return nil, nil
	}

	// Index 0 is reserved for the base result so output order is stable
	// regardless of probe completion order.
	results := make([]string, len(candidatePaths))
	results[0] = baseValid

	g, probeCtx := errgroup.WithContext(ctx)
	for i, path := range candidatePaths {
		if path == "" {
			continue
		}
		g.Go(func() error {
			candidate := base + "/" + path
			if valid, ok := v.probe(probeCtx, candidate); ok {
				results[i] = valid
			}
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool, len(results))
	valid := make([]string, 0, len(results))
	for _, u := range results {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		valid = append(valid, u)
	}
	return valid, nil
}

// probe runs the HEAD-then-GET existence check for one candidate. It returns
// the normalized URL to record and whether the candidate is valid.
func (v *Validator) probe(ctx context.Context, candidate string) (string, bool) {
	resp, err := v.do(ctx, http.MethodHead, candidate)
	if err != nil {
		metrics.ObserveProbe("HEAD", "error")
		return v.verifyWithGet(ctx, candidate)
	}
	finalURL := resp.Request.URL.String()
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		metrics.ObserveProbe("HEAD", "valid")
		normalized, err := intel.NormalizeURL(finalURL)
		if err != nil {
			return "", false
		}
		return normalized, true
	case fallbackStatuses[resp.StatusCode]:
		metrics.ObserveProbe("HEAD", "fallback")
		return v.verifyWithGet(ctx, candidate)
	default:
		metrics.ObserveProbe("HEAD", "invalid")
		return "", false
	}
}

// verifyWithGet fetches the page body and rejects soft 404s by marker scan.
func (v *Validator) verifyWithGet(ctx context.Context, candidate string) (string, bool) {
	resp, err := v.do(ctx, http.MethodGet, candidate)
	if err != nil {
		metrics.ObserveProbe("GET", "error")
		v.logger.Debug("GET verification failed",
			zap.String("url", candidate), zap.Error(err))
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if !getValidStatuses[resp.StatusCode] {
		metrics.ObserveProbe("GET", "invalid")
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		metrics.ObserveProbe("GET", "error")
		return "", false
	}
	content := strings.ToLower(string(body))
	for _, marker := range notFoundMarkers {
		if strings.Contains(content, marker) {
			metrics.ObserveProbe("GET", "soft404")
			v.logger.Debug("page contains not-found marker",
				zap.String("url", candidate), zap.String("marker", marker))
			return "", false
		}
	}

	metrics.ObserveProbe("GET", "valid")
	normalized, err := intel.NormalizeURL(candidate)
	if err != nil {
		return "", false
	}
	return normalized, true
}

func (v *Validator) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", v.userAgent)
	if method == http.MethodGet {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	}
	return v.client.Do(req)
}
