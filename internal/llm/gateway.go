package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps how much of an endpoint response body is read.
const maxResponseBytes = 1 << 20

// Gateway performs the remote model call with bounded retry and backoff.
// It never returns an error: exhausted retries yield ok=false and callers
// substitute fallback text.
type Gateway struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration)
}

// GatewayOption configures the gateway.
type GatewayOption func(*Gateway)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = httpClient
	}
}

// withSleep overrides the inter-attempt delay (tests only).
func withSleep(sleep func(ctx context.Context, d time.Duration)) GatewayOption {
	return func(g *Gateway) {
		g.sleep = sleep
	}
}

// NewGateway creates a gateway for the configured endpoint.
func NewGateway(config Config, opts ...GatewayOption) *Gateway {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultAttemptTimeout
	}

	g := &Gateway{
		config:     config,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// sleepContext waits for d or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Call attempts the remote call up to the configured retry cap. Every
// failure mode (network error, non-2xx status, unparseable body, no usable
// text under any known schema) counts as one failed attempt. Between
// attempts the gateway sleeps backoff plus a small per-attempt jitter,
// doubling the backoff each time; it never sleeps after the last attempt.
func (g *Gateway) Call(ctx context.Context, req Request) (string, bool) {
	backoff := DefaultBackoffBase

	for attempt := 1; attempt <= g.config.MaxRetries; attempt++ {
		text, err := g.attempt(ctx, req)
		if err == nil {
			g.logger.Info("llm call succeeded",
				slog.Int("attempt", attempt))
			return text, true
		}

		g.logger.Warn("llm call attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", g.config.MaxRetries),
			slog.Any("error", err))

		if ctx.Err() != nil {
			break
		}
		if attempt < g.config.MaxRetries {
			g.sleep(ctx, backoff+time.Duration(attempt)*DefaultJitterStep)
			backoff *= 2
		}
	}

	g.logger.Error("llm call attempts exhausted",
		slog.Int("max_retries", g.config.MaxRetries))
	return "", false
}

// attempt performs exactly one outbound call.
func (g *Gateway) attempt(ctx context.Context, req Request) (string, error) {
	if g.config.URL == "" {
		return "", fmt.Errorf("no endpoint URL configured")
	}

	payload := map[string]any{
		"model": g.config.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": DefaultTemperature,
		"max_tokens":  DefaultMaxTokens,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.config.AttemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, g.config.URL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	text, err := ExtractText(body)
	if err != nil {
		return "", err
	}
	return text, nil
}

// wireResponse covers the response shapes the endpoint has used across
// revisions. Fields that drift between object and string forms are kept
// raw and probed during extraction.
type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Output     string          `json:"output"`
	Content    json.RawMessage `json:"content"`
	Candidates []struct {
		Content json.RawMessage `json:"content"`
		Text    string          `json:"text"`
	} `json:"candidates"`
}

// candidateContent is the generation-style nested content object.
type candidateContent struct {
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

// ExtractText pulls reply text out of a response body, probing the known
// schema variants in fixed priority order and accepting the first
// non-empty match. The endpoint's contract has changed across revisions;
// shape drift must not hard-fail the call.
func ExtractText(body []byte) (string, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return "", fmt.Errorf("failed to parse response body: %w", err)
	}

	// Chat-completion style.
	if len(wire.Choices) > 0 {
		if text := strings.TrimSpace(wire.Choices[0].Message.Content); text != "" {
			return text, nil
		}
		if text := strings.TrimSpace(wire.Choices[0].Text); text != "" {
			return text, nil
		}
	}

	// Flat string fields.
	if text := strings.TrimSpace(wire.Output); text != "" {
		return text, nil
	}
	if len(wire.Content) > 0 {
		var flat string
		if err := json.Unmarshal(wire.Content, &flat); err == nil {
			if text := strings.TrimSpace(flat); text != "" {
				return text, nil
			}
		}
	}

	// Generation style.
	if len(wire.Candidates) > 0 {
		cand := wire.Candidates[0]
		if len(cand.Content) > 0 {
			var nested candidateContent
			if err := json.Unmarshal(cand.Content, &nested); err == nil {
				if len(nested.Parts) > 0 {
					if text := strings.TrimSpace(nested.Parts[0].Text); text != "" {
						return text, nil
					}
				}
			}
			var flat string
			if err := json.Unmarshal(cand.Content, &flat); err == nil {
				if text := strings.TrimSpace(flat); text != "" {
					return text, nil
				}
			}
		}
		if text := strings.TrimSpace(cand.Text); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("no known response schema yielded text")
}
