package browser

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Page is one fetched or rendered document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	UsedJS     bool
}

// Fetcher retrieves pages statically via a Colly collector.
type Fetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewFetcher constructs a configured Colly-based fetcher.
func NewFetcher(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.NavTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.NavTimeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.MaxParallel * 2,
	}); err != nil {
		return nil, err
	}

	return &Fetcher{
		baseCollector: base,
		logger:        logger,
	}, nil
}

// Fetch retrieves a page without executing JavaScript.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{page: Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		return res.page, res.err
	default:
		return Page{}, errors.New("fetch produced no result")
	}
}

type fetchResult struct {
	page Page
	err  error
}
