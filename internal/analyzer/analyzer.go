// Package analyzer runs the per-company analysis pipeline: validate
// sub-pages, extract each page under one shared session, merge the fragments
// into a single record.
package analyzer

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/companyscope/crawler/internal/extraction"
	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/metrics"
)

// state names the analysis pipeline stages for logging.
type state string

const (
	stateValidating state = "validating"
	stateExtracting state = "extracting"
	stateMerging    state = "merging"
	stateDone       state = "done"
	stateFailed     state = "failed"
)

// URLValidator produces the set of live, normalized sub-pages for a site.
type URLValidator interface {
	ValidURLs(ctx context.Context, baseURL string) ([]string, error)
}

// Analyzer produces one CompanyRecord per website.
type Analyzer struct {
	validator   URLValidator
	capability  intel.ExtractionCapability
	extractor   *extraction.Client
	concurrency int
	logger      *zap.Logger
}

// New creates a company analyzer.
func New(
	validator URLValidator,
	capability intel.ExtractionCapability,
	extractor *extraction.Client,
	concurrency int,
	logger *zap.Logger,
) *Analyzer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Analyzer{
		validator:   validator,
		capability:  capability,
		extractor:   extractor,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Analyze runs the full pipeline for one company website. Failure is never
// returned as an error: it degrades to a sentinel record so batch discovery
// keeps progressing.
func (a *Analyzer) Analyze(ctx context.Context, baseURL string) *intel.CompanyRecord {
	record := a.analyze(ctx, baseURL)
	if record.IsSentinel() {
		metrics.ObserveAnalysis("failed")
	} else {
		metrics.ObserveAnalysis("done")
	}
	return record
}

func (a *Analyzer) analyze(ctx context.Context, baseURL string) *intel.CompanyRecord {
	base, err := intel.NormalizeURL(baseURL)
	if err != nil {
		a.fail(baseURL, stateValidating, err)
		return intel.SentinelRecord(baseURL, err.Error())
	}
	log := a.logger.With(zap.String("base_url", base))

	log.Info("analysis started", zap.String("state", string(stateValidating)))
	validURLs, err := a.validator.ValidURLs(ctx, base)
	if err != nil {
		a.fail(base, stateValidating, err)
		return intel.SentinelRecord(base, err.Error())
	}
	if len(validURLs) == 0 {
		a.fail(base, stateValidating, intel.ErrNoValidURLs)
		return intel.SentinelRecord(base, intel.ErrNoValidURLs.Error())
	}

	log.Info("analysis state", zap.String("state", string(stateExtracting)),
		zap.Int("valid_urls", len(validURLs)))
	fragments, err := a.extractAll(ctx, validURLs)
	if err != nil {
		a.fail(base, stateExtracting, err)
		return intel.SentinelRecord(base, err.Error())
	}

	log.Info("analysis state", zap.String("state", string(stateMerging)),
		zap.Int("fragments", len(fragments)))
	record, err := intel.Merge(fragments)
	if err != nil {
		a.fail(base, stateMerging, err)
		return intel.SentinelRecord(base, err.Error())
	}
	record.Website = base

	log.Info("analysis completed", zap.String("state", string(stateDone)),
		zap.String("company_name", record.CompanyName))
	return record
}

// extractAll runs bounded concurrent extraction over the valid URLs under one
// shared session. Per-URL failures drop the URL; completions are re-sorted to
// submission order so the merge stays deterministic.
func (a *Analyzer) extractAll(ctx context.Context, urls []string) ([]intel.Fragment, error) {
	session, err := a.capability.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			a.logger.Warn("session close failed", zap.Error(closeErr))
		}
	}()

	directive := CompanyDirective()
	slots := make([]intel.Fragment, len(urls))

	g, extractCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, pageURL := range urls {
		g.Go(func() error {
			fragment, err := a.extractor.ExtractFragment(extractCtx, session, pageURL, directive)
			if err != nil {
				a.logger.Warn("page extraction failed, dropping URL",
					zap.String("url", pageURL), zap.Error(err))
				return nil
			}
			slots[i] = fragment
			return nil
		})
	}
	_ = g.Wait()

	fragments := make([]intel.Fragment, 0, len(slots))
	for _, frag := range slots {
		if frag != nil {
			fragments = append(fragments, frag)
		}
	}
	return fragments, nil
}

func (a *Analyzer) fail(baseURL string, from state, err error) {
	a.logger.Warn("analysis failed",
		zap.String("base_url", baseURL),
		zap.String("state", string(from)),
		zap.String("next_state", string(stateFailed)),
		zap.Error(err))
}
