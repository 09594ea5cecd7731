// Package browser implements the extraction capability: fetch a page (static
// first, headless render when the page needs JavaScript), reduce it to
// visible text, and have the chat model pull structured data out of it.
package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/intel"
)

// Config tunes page fetching and rendering.
type Config struct {
	UserAgent string
	// NavTimeout bounds one render's navigation and DOM settle.
	NavTimeout time.Duration
	// MaxParallel bounds concurrent headless renders across all sessions.
	MaxParallel int
	// DomainQPS rate-limits renders per domain.
	DomainQPS float64
	// MinHTMLBytes marks a static body smaller than this as needing JS.
	MinHTMLBytes int
	// JSKeywords mark a static body as needing JS when present.
	JSKeywords []string
	// MaxTextChars caps the visible text handed to the model.
	MaxTextChars int
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 25 * time.Second
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 2
	}
	if c.MinHTMLBytes <= 0 {
		c.MinHTMLBytes = 2000
	}
	if c.MaxTextChars <= 0 {
		c.MaxTextChars = 24000
	}
	return c
}

// Capability opens extraction sessions backed by one shared headless browser
// and the chat model.
type Capability struct {
	cfg      Config
	fetcher  *Fetcher
	renderer *Renderer
	detector *Detector
	chat     intel.ChatCompleter
	logger   *zap.Logger
}

// New starts the shared browser and returns a ready capability. Call Close
// to tear the browser down.
func New(cfg Config, chat intel.ChatCompleter, logger *zap.Logger) (*Capability, error) {
	cfg = cfg.withDefaults()
	fetcher, err := NewFetcher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	renderer, err := NewRenderer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return &Capability{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: renderer,
		detector: NewDetector(cfg.MinHTMLBytes, cfg.JSKeywords),
		chat:     chat,
		logger:   logger,
	}, nil
}

// Close tears down the shared headless browser.
func (c *Capability) Close() error {
	return c.renderer.Close()
}

// NewSession opens one extraction session. The session owns a dedicated
// browser tab reused across its sequential renders.
func (c *Capability) NewSession(ctx context.Context) (intel.ExtractionSession, error) {
	tab, err := c.renderer.NewTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser tab: %w", err)
	}
	return &Session{
		capability: c,
		tab:        tab,
		logger:     c.logger,
	}, nil
}
