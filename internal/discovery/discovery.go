// Package discovery turns startup listing pages into analyzed company
// records: extract candidate companies, resolve their websites, fan out full
// analyses, partition into discovered and failed.
package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/companyscope/crawler/internal/extraction"
	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/search"
)

// CompanyAnalyzer runs one full company analysis, degrading to a sentinel
// record on failure.
type CompanyAnalyzer interface {
	Analyze(ctx context.Context, baseURL string) *intel.CompanyRecord
}

// Config tunes a discovery run.
type Config struct {
	// DefaultListingURLs are used when a request names no listing pages.
	DefaultListingURLs []string
	// DefaultMaxCompanies caps a run when the request gives no cap.
	DefaultMaxCompanies int
	// Concurrency bounds the per-candidate fan-out.
	Concurrency int
	// Topic receives one event per discovered company.
	Topic string
}

func (c Config) withDefaults() Config {
	if c.DefaultMaxCompanies <= 0 {
		c.DefaultMaxCompanies = 30
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Orchestrator coordinates one discovery run end to end.
type Orchestrator struct {
	cfg        Config
	capability intel.ExtractionCapability
	extractor  *extraction.Client
	searcher   intel.Searcher
	analyzer   CompanyAnalyzer
	publisher  intel.Publisher
	logger     *zap.Logger
}

// New creates a discovery orchestrator. The publisher may be nil when no
// event sink is configured.
func New(
	cfg Config,
	capability intel.ExtractionCapability,
	extractor *extraction.Client,
	searcher intel.Searcher,
	analyzer CompanyAnalyzer,
	publisher intel.Publisher,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		capability: capability,
		extractor:  extractor,
		searcher:   searcher,
		analyzer:   analyzer,
		publisher:  publisher,
		logger:     logger,
	}
}

// Discover extracts candidate companies from the listing pages and analyzes
// each one. Empty urls falls back to the configured defaults; maxCompanies
// <= 0 falls back to the configured cap.
func (o *Orchestrator) Discover(ctx context.Context, urls []string, maxCompanies int) (*intel.DiscoveryResult, error) {
	if len(urls) == 0 {
		urls = o.cfg.DefaultListingURLs
	}
	if maxCompanies <= 0 {
		maxCompanies = o.cfg.DefaultMaxCompanies
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no listing URLs to discover from")
	}

	candidates, err := o.extractCandidates(ctx, urls, maxCompanies)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &intel.DiscoveryResult{
			DiscoveredCompanies: []*intel.CompanyRecord{},
			FailedCompanies:     []intel.CandidateCompany{},
		}, nil
	}
	if len(candidates) > maxCompanies {
		candidates = candidates[:maxCompanies]
	}

	o.resolveWebsites(ctx, candidates)
	result := o.analyzeCandidates(ctx, candidates)
	o.publishDiscoveries(ctx, result.DiscoveredCompanies)
	return result, nil
}

// extractCandidates pulls candidate companies off every listing page
// concurrently, capping each page's contribution at maxCompanies. Per-page
// failures are logged and contribute nothing.
func (o *Orchestrator) extractCandidates(ctx context.Context, urls []string, maxCompanies int) ([]*intel.CandidateCompany, error) {
	perListing := make([][]*intel.CandidateCompany, len(urls))
	directive := listingDirective(maxCompanies)

	g, listCtx := errgroup.WithContext(ctx)
	for i, listingURL := range urls {
		g.Go(func() error {
			candidates, err := o.extractListing(listCtx, listingURL, directive, maxCompanies)
			if err != nil {
				o.logger.Warn("listing extraction failed",
					zap.String("url", listingURL), zap.Error(err))
				return nil
			}
			perListing[i] = candidates
			return nil
		})
	}
	_ = g.Wait()

	var all []*intel.CandidateCompany
	for _, candidates := range perListing {
		all = append(all, candidates...)
	}
	return all, nil
}

func (o *Orchestrator) extractListing(
	ctx context.Context,
	listingURL string,
	directive intel.Directive,
	maxCompanies int,
) ([]*intel.CandidateCompany, error) {
	session, err := o.capability.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Close() }()

	items, err := o.extractor.ExtractList(ctx, session, listingURL, directive)
	if err != nil {
		return nil, err
	}

	candidates := parseListingItems(items, maxCompanies)
	o.logger.Info("listing extracted",
		zap.String("url", listingURL),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// parseListingItems converts raw listing items into candidates. Items carry
// the company name as the first element of a content list and optionally a
// jobs list; anything malformed is skipped.
func parseListingItems(items []intel.Fragment, maxCompanies int) []*intel.CandidateCompany {
	candidates := make([]*intel.CandidateCompany, 0, len(items))
	for _, item := range items {
		if len(candidates) == maxCompanies {
			break
		}
		content, ok := item["content"].([]any)
		if !ok || len(content) == 0 {
			continue
		}
		name, ok := content[0].(string)
		if !ok || name == "" {
			continue
		}
		candidate := &intel.CandidateCompany{
			CompanyName:  name,
			JobPositions: []string{},
		}
		if jobs, ok := item["jobs"].([]any); ok {
			for _, job := range jobs {
				if s, ok := job.(string); ok && s != "" {
					candidate.JobPositions = append(candidate.JobPositions, s)
				}
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// resolveWebsites fills in each candidate's website concurrently. Resolution
// failures leave the website empty, which classifies the candidate as failed
// later without attempting analysis.
func (o *Orchestrator) resolveWebsites(ctx context.Context, candidates []*intel.CandidateCompany) {
	g, searchCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for _, candidate := range candidates {
		g.Go(func() error {
			website, err := search.ResolveWebsite(searchCtx, o.searcher, candidate.CompanyName)
			if err != nil {
				o.logger.Warn("website resolution failed",
					zap.String("company_name", candidate.CompanyName), zap.Error(err))
				return nil
			}
			candidate.WebsiteURL = website
			return nil
		})
	}
	_ = g.Wait()
}

// analyzeCandidates fans out full analyses for candidates with a website and
// partitions the results. Listing-page job data overwrites whatever the
// analysis scraped, being the more authoritative source.
func (o *Orchestrator) analyzeCandidates(ctx context.Context, candidates []*intel.CandidateCompany) *intel.DiscoveryResult {
	records := make([]*intel.CompanyRecord, len(candidates))

	g, analyzeCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, candidate := range candidates {
		if candidate.WebsiteURL == "" {
			continue
		}
		g.Go(func() error {
			records[i] = o.analyzer.Analyze(analyzeCtx, candidate.WebsiteURL)
			return nil
		})
	}
	_ = g.Wait()

	result := &intel.DiscoveryResult{
		DiscoveredCompanies: []*intel.CompanyRecord{},
		FailedCompanies:     []intel.CandidateCompany{},
	}
	for i, candidate := range candidates {
		record := records[i]
		if record.IsSentinel() {
			result.FailedCompanies = append(result.FailedCompanies, *candidate)
			continue
		}
		record.JobPositions = candidate.JobPositions
		result.DiscoveredCompanies = append(result.DiscoveredCompanies, record)
	}
	return result
}

// publishDiscoveries emits one event per discovered company. Publishing is
// best-effort: failures are logged and never affect the response.
func (o *Orchestrator) publishDiscoveries(ctx context.Context, discovered []*intel.CompanyRecord) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	for _, record := range discovered {
		event := map[string]any{
			"company_name": record.CompanyName,
			"website":      record.Website,
		}
		if _, err := o.publisher.Publish(ctx, o.cfg.Topic, event); err != nil {
			o.logger.Warn("discovery event publish failed",
				zap.String("company_name", record.CompanyName), zap.Error(err))
		}
	}
}
