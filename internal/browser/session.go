package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/companyscope/crawler/internal/extraction"
	"github.com/companyscope/crawler/internal/intel"
)

// Session extracts structured data from pages under one exclusively-owned
// browser tab.
type Session struct {
	capability *Capability
	tab        *Tab
	logger     *zap.Logger
}

// Close releases the session's browser tab.
func (s *Session) Close() error {
	return s.tab.Close()
}

// Extract fetches the page, promotes to a headless render when the static
// body looks JS-dependent, and asks the chat model for the directive's
// structured output.
func (s *Session) Extract(ctx context.Context, pageURL string, directive intel.Directive) (intel.ExtractionResult, error) {
	page, err := s.loadPage(ctx, pageURL)
	if err != nil {
		return intel.ExtractionResult{}, err
	}
	if page.StatusCode >= 400 {
		return intel.ExtractionResult{}, &extraction.StatusError{Code: page.StatusCode}
	}

	text, err := VisibleText(page.Body, s.capability.cfg.MaxTextChars)
	if err != nil {
		return intel.ExtractionResult{}, fmt.Errorf("reduce page to text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return intel.ExtractionResult{Success: false}, nil
	}

	resp, err := s.capability.chat.Complete(ctx, intel.ChatRequest{
		Messages: []intel.ChatMessage{
			{Role: "system", Content: buildPrompt(directive)},
			{Role: "user", Content: fmt.Sprintf("Page URL: %s\n\nPage content:\n%s", pageURL, text)},
		},
	})
	if err != nil {
		return intel.ExtractionResult{}, err
	}

	content, err := parseModelReply(resp.Text())
	if err != nil {
		s.logger.Warn("model reply was not parseable JSON",
			zap.String("url", pageURL), zap.Error(err))
		return intel.ExtractionResult{Success: false}, nil
	}
	return intel.ExtractionResult{Success: true, Content: content}, nil
}

// loadPage fetches statically first and falls back to a JS render when the
// body looks incomplete. A failed static fetch goes straight to the render.
func (s *Session) loadPage(ctx context.Context, pageURL string) (Page, error) {
	page, err := s.capability.fetcher.Fetch(ctx, pageURL)
	if err == nil && !s.capability.detector.NeedsJS(page.Body) {
		return page, nil
	}
	if err != nil {
		s.logger.Debug("static fetch failed, rendering",
			zap.String("url", pageURL), zap.Error(err))
	}
	rendered, renderErr := s.capability.renderer.Render(ctx, s.tab, pageURL)
	if renderErr != nil {
		if err != nil {
			return Page{}, fmt.Errorf("render after failed fetch: %w", renderErr)
		}
		// Static body exists but looked JS-dependent; better than nothing.
		s.logger.Debug("render failed, falling back to static body",
			zap.String("url", pageURL), zap.Error(renderErr))
		return page, nil
	}
	return rendered, nil
}

func buildPrompt(directive intel.Directive) string {
	var b strings.Builder
	b.WriteString(directive.Instruction)
	if len(directive.Schema) > 0 {
		b.WriteString("\n\nReturn ONLY valid JSON matching this schema, with no commentary:\n")
		b.Write(directive.Schema)
	} else {
		b.WriteString("\n\nReturn ONLY valid JSON, with no commentary.")
	}
	return b.String()
}

// parseModelReply decodes the model's JSON reply, tolerating code fences.
func parseModelReply(reply string) (any, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, errors.New("empty model reply")
	}
	reply = stripCodeFence(reply)

	var content any
	if err := json.Unmarshal([]byte(reply), &content); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	return content, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
