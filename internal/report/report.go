// Package report builds prose research reports for a company name: query the
// research model, scrub provider watermarks, then translate and polish the
// text paragraph by paragraph.
package report

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/extraction"
	"github.com/companyscope/crawler/internal/intel"
)

// researchQuery asks the research provider for the full company profile. The
// provider answers in Chinese; the translation pass produces the English
// report.
const researchQuery = "%s 的公司业务和背景，创始人资料和背景，融资情况，法律纠纷，安全风险评估以及用户评价"

const translatePrompt = `Please translate the following Chinese text to English and optimize it.
Maintain all original Markdown formatting and structure.
Make the translation professional and natural while preserving all factual information.

Text to translate:
%s`

var urlPattern = regexp.MustCompile(`https?://[A-Za-z0-9$\-_@.&+!*(),%]+`)

// Config tunes the report builder.
type Config struct {
	// Model is the research model name sent to the research endpoint.
	Model string
	// FilterKeywords mark watermark lines and URLs to scrub from the raw
	// report.
	FilterKeywords []string
	// MaxAttempts, BackoffBase and BackoffMax shape the retry policy around
	// the research call.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "research"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 4 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Second
	}
	return c
}

// Builder produces company research reports.
type Builder struct {
	cfg        Config
	research   intel.ChatCompleter
	translator intel.ChatCompleter
	logger     *zap.Logger
}

// New creates a report builder. research queries the dedicated research
// endpoint; translator runs the per-paragraph translation pass.
func New(cfg Config, research, translator intel.ChatCompleter, logger *zap.Logger) *Builder {
	return &Builder{
		cfg:        cfg.withDefaults(),
		research:   research,
		translator: translator,
		logger:     logger,
	}
}

// Build produces the English research report for a company. model overrides
// the configured research model when non-empty.
func (b *Builder) Build(ctx context.Context, companyName, model string) (string, error) {
	if strings.TrimSpace(companyName) == "" {
		return "", errors.New("company name is required")
	}
	if model == "" {
		model = b.cfg.Model
	}

	raw, err := b.queryResearch(ctx, companyName, model)
	if err != nil {
		return "", err
	}

	scrubbed := Scrub(raw, b.cfg.FilterKeywords)
	return b.translate(ctx, scrubbed), nil
}

// queryResearch calls the research endpoint, retrying transient failures.
func (b *Builder) queryResearch(ctx context.Context, companyName, model string) (string, error) {
	req := intel.ChatRequest{
		Model: model,
		Messages: []intel.ChatMessage{
			{Role: "assistant", Content: fmt.Sprintf(researchQuery, companyName)},
		},
	}

	var lastErr error
	backoff := b.cfg.BackoffBase
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		resp, err := b.research.Complete(ctx, req)
		if err == nil {
			content := resp.Text()
			if strings.TrimSpace(content) == "" {
				return "", errors.New("research response carried no content")
			}
			return content, nil
		}
		if !extraction.Transient(err) {
			return "", fmt.Errorf("research query: %w", err)
		}
		lastErr = err
		if attempt == b.cfg.MaxAttempts {
			break
		}
		b.logger.Debug("transient research failure, retrying",
			zap.String("company_name", companyName),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > b.cfg.BackoffMax {
			backoff = b.cfg.BackoffMax
		}
	}
	return "", fmt.Errorf("research query exhausted retries: %w", lastErr)
}

// translate runs the per-paragraph translation pass. A paragraph whose
// translation fails keeps its original text.
func (b *Builder) translate(ctx context.Context, content string) string {
	paragraphs := strings.Split(content, "\n\n")
	translated := make([]string, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		resp, err := b.translator.Complete(ctx, intel.ChatRequest{
			Messages: []intel.ChatMessage{
				{Role: "user", Content: fmt.Sprintf(translatePrompt, paragraph)},
			},
			Temperature: 0.7,
		})
		if err != nil || strings.TrimSpace(resp.Text()) == "" {
			b.logger.Warn("paragraph translation failed, keeping original",
				zap.Error(err))
			translated = append(translated, paragraph)
			continue
		}
		translated = append(translated, strings.TrimSpace(resp.Text()))
	}
	return strings.Join(translated, "\n\n")
}

// Scrub drops watermark lines and strips watermark URLs. A line containing
// any keyword (case-insensitive) is removed whole; a URL containing a keyword
// is removed from its line.
func Scrub(content string, keywords []string) string {
	if len(keywords) == 0 {
		return content
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		lower := strings.ToLower(line)
		drop := false
		for _, kw := range lowered {
			if kw != "" && strings.Contains(lower, kw) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}

	return urlPattern.ReplaceAllStringFunc(strings.Join(kept, "\n"), func(match string) string {
		lower := strings.ToLower(match)
		for _, kw := range lowered {
			if kw != "" && strings.Contains(lower, kw) {
				return ""
			}
		}
		return match
	})
}
