// Package llm provides an OpenAI-compatible chat-completions client with a
// pluggable bearer-token pool.
package llm

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

const completionsPath = "/v1/chat/completions"

// Config captures the parameters for the chat-completion endpoint.
type Config struct {
	// BaseURL is the provider root, e.g. https://api.openai.com.
	BaseURL string
	// Model is the default model used when a request leaves Model empty.
	Model string
	// MaxTokens is the default completion budget when a request leaves it zero.
	MaxTokens int
	Timeout   time.Duration
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	model      string
	maxTokens  int
	tokens     TokenSelector
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a chat-completions client.
func New(cfg Config, tokens TokenSelector, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base URL is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token selector is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Complete sends one chat-completion request and decodes the response.
func (c *Client) Complete(ctx context.Context, req intel.ChatRequest) (*intel.ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.tokens.Token())

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 512)}
	}

	var out intel.ChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode chat completion response: %w", err)
	}
	c.logger.Debug("chat completion",
		zap.String("model", req.Model),
		zap.Duration("duration", time.Since(start)))
	return &out, nil
}

// StatusError is a non-200 response from the completion endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat completion failed with status %d: %s", e.Code, e.Body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
