// Package search implements the web-search capability against a
// Serper-compatible API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/intel"
)

// Config captures the parameters for the search endpoint.
type Config struct {
	// BaseURL is the API root, e.g. https://google.serper.dev.
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements intel.Searcher against a Serper-compatible endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a search client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("search base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Search runs one query and returns the organic results.
func (c *Client) Search(ctx context.Context, query string) (*intel.SearchResults, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search API key is not configured")
	}
	body, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed with status %d", resp.StatusCode)
	}

	var results intel.SearchResults
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	c.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("organic_results", len(results.Organic)))
	return &results, nil
}

// ResolveWebsite finds the official website for a company name. Returns
// intel.ErrNoWebsite when the search produces no organic results.
func ResolveWebsite(ctx context.Context, searcher intel.Searcher, companyName string) (string, error) {
	results, err := searcher.Search(ctx, companyName+" official website")
	if err != nil {
		return "", fmt.Errorf("resolve website for %q: %w", companyName, err)
	}
	for _, hit := range results.Organic {
		if hit.Link != "" {
			return hit.Link, nil
		}
	}
	return "", intel.ErrNoWebsite
}
