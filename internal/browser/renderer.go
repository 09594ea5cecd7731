package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Renderer runs pages through headless Chrome when the static fetch is not
// enough.
type Renderer struct {
	cfg             Config
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	domainLimiters  sync.Map
	logger          *zap.Logger
}

// NewRenderer starts the shared headless browser.
func NewRenderer(cfg Config, logger *zap.Logger) (*Renderer, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Renderer{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.MaxParallel),
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *Renderer) Close() error {
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// Tab is one browser tab, exclusively owned by a session.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Close releases the tab.
func (t *Tab) Close() error {
	t.cancel()
	return nil
}

// NewTab opens a tab in the shared browser.
func (r *Renderer) NewTab(ctx context.Context) (*Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(r.browserCtx)
	return &Tab{ctx: tabCtx, cancel: cancel}, nil
}

// Render navigates the tab to the URL with JavaScript enabled and returns
// the settled DOM. Renders are bounded globally and rate-limited per domain.
func (r *Renderer) Render(ctx context.Context, tab *Tab, rawURL string) (Page, error) {
	release, err := r.acquireSlot(ctx)
	if err != nil {
		return Page{}, err
	}
	defer release()

	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return Page{}, fmt.Errorf("render rate limit: %w", err)
	}

	taskCtx, cancelTask := context.WithTimeout(tab.ctx, r.cfg.NavTimeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(r.cfg.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Page{}, fmt.Errorf("chromedp run: %w", err)
	}

	return Page{
		URL:      rawURL,
		FinalURL: rawURL,
		Body:     []byte(html),
		UsedJS:   true,
	}, nil
}

func (r *Renderer) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *Renderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	return limiter.Wait(ctx)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
