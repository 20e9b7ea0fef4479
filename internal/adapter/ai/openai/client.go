// Package openai implements a single-call completion client for
// OpenAI-compatible chat completion APIs. It never retries: every call yields
// exactly one classified CompletionAttempt and the orchestrator decides what
// to do next.
package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/config"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

const (
	maxResponseBytes = 4 << 20
	snippetBytes     = 512
)

// LimiterKey is the shared token bucket every completion call draws from.
const LimiterKey = "openai:chat"

var (
	tokenLimitPattern = regexp.MustCompile(`(?i)(context[ _-]?length|context window|maximum context|max_tokens|maximum (number of )?tokens|too many tokens|token limit|tokens? exceed)`)
	rateLimitPattern  = regexp.MustCompile(`(?i)(rate[ _-]?limit|too many requests|requests per min)`)
)

// Client implements domain.ChatCompleter.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	hc          *http.Client
	limiter     domain.Limiter
	breakers    *Breakers
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithLimiter throttles calls through a shared token bucket. A denied call is
// reported as rateLimited without reaching the provider.
func WithLimiter(l domain.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBreakers guards each model with a circuit breaker. Calls rejected by an
// open circuit are reported as serverError.
func WithBreakers(b *Breakers) Option {
	return func(c *Client) { c.breakers = b }
}

// New builds a client. The API key is read once here; a missing key fails
// construction instead of every later call.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, fmt.Errorf("op=openai.New: %w: OPENAI_API_KEY missing", domain.ErrInvalidConfiguration)
	}
	timeout := cfg.OpenAITimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	c := &Client{
		apiKey:      cfg.OpenAIAPIKey,
		baseURL:     strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		model:       cfg.OpenAIModel,
		temperature: cfg.OpenAITemperature,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the default model id.
func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Complete issues one chat completion request and classifies the result.
// Empty model and zero temperature fall back to the configured defaults.
func (c *Client) Complete(ctx domain.Context, req domain.ChatRequest) (attempt domain.CompletionAttempt) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	attempt = domain.CompletionAttempt{
		PromptText:   req.User,
		TokenCeiling: req.MaxTokens,
		Model:        model,
	}
	lg := observability.LoggerFromContext(ctx).With(
		slog.String("provider", "openai"),
		slog.String("model", model),
		slog.Int("max_tokens", req.MaxTokens))

	start := time.Now()
	defer func() {
		outcome := "success"
		if attempt.ErrorKind != domain.ErrorKindNone {
			outcome = string(attempt.ErrorKind)
		}
		observability.ObserveCompletion(model, outcome, req.MaxTokens, time.Since(start))
	}()

	var breaker *Breaker
	if c.breakers != nil {
		breaker = c.breakers.For(model)
		if !breaker.Allow() {
			lg.Warn("circuit open, completion skipped")
			return c.fail(attempt, domain.ErrorKindServerError, "circuit breaker open for model "+model, start)
		}
	}

	if c.limiter != nil {
		allowed, retryAfter, err := c.limiter.Allow(ctx, LimiterKey, 1)
		switch {
		case err != nil:
			lg.Warn("rate limiter unavailable, proceeding", slog.Any("error", err))
		case !allowed:
			observability.ObserveThrottled()
			lg.Warn("completion throttled locally", slog.Duration("retry_after", retryAfter))
			if breaker != nil {
				breaker.release()
			}
			return c.fail(attempt, domain.ErrorKindRateLimited,
				fmt.Sprintf("rate limited locally, retry after %s", retryAfter.Round(time.Millisecond)), start)
		}
	}

	attempt = c.do(ctx, lg, attempt, chatBody{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	attempt.Latency = time.Since(start)

	if breaker != nil {
		switch attempt.ErrorKind {
		case domain.ErrorKindServerError, domain.ErrorKindNetworkFailure:
			breaker.RecordFailure()
		case domain.ErrorKindRateLimited:
			breaker.release()
		default:
			breaker.RecordSuccess()
		}
	}
	return attempt
}

func (c *Client) do(ctx domain.Context, lg *slog.Logger, attempt domain.CompletionAttempt, body chatBody) domain.CompletionAttempt {
	b, err := json.Marshal(body)
	if err != nil {
		return c.fail(attempt, domain.ErrorKindClientError, "encode request: "+err.Error(), time.Time{})
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return c.fail(attempt, domain.ErrorKindClientError, "build request: "+err.Error(), time.Time{})
	}
	r.Header.Set("Authorization", "Bearer "+c.apiKey)
	r.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(r)
	if err != nil {
		lg.Error("ai provider request failed", slog.Any("error", err))
		return c.fail(attempt, domain.ErrorKindNetworkFailure, err.Error(), time.Time{})
	}
	defer func() { _ = resp.Body.Close() }()

	status := resp.StatusCode
	attempt.HTTPStatus = &status

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		lg.Error("failed to read response body", slog.Int("status", status), slog.Any("error", err))
		return c.fail(attempt, domain.ErrorKindNetworkFailure, "read response: "+err.Error(), time.Time{})
	}

	if status < 200 || status >= 300 {
		kind, msg := classifyStatus(status, bodyBytes)
		lg.Warn("ai provider non-2xx",
			slog.Int("status", status),
			slog.String("error_kind", string(kind)),
			slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
			slog.String("body", snippet(bodyBytes)))
		return c.fail(attempt, kind, msg, time.Time{})
	}

	var out chatResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		lg.Error("ai provider decode error", slog.Any("error", err), slog.String("body", snippet(bodyBytes)))
		return c.fail(attempt, domain.ErrorKindServerError, "decode response: "+err.Error(), time.Time{})
	}
	if len(out.Choices) == 0 {
		lg.Error("ai provider returned empty choices")
		return c.fail(attempt, domain.ErrorKindServerError, "empty choices", time.Time{})
	}

	choice := out.Choices[0]
	content := choice.Message.Content
	attempt.RawResponseText = &content
	attempt.FinishReason = domain.FinishReason(choice.FinishReason)
	if out.Model != "" && out.Model != attempt.Model {
		lg.Debug("model substitution detected", slog.String("actual_model", out.Model))
	}

	if attempt.FinishReason == domain.FinishLength {
		lg.Warn("completion truncated",
			slog.Int("completion_tokens", out.Usage.CompletionTokens),
			slog.Int("content_bytes", len(content)))
		attempt.ErrorKind = domain.ErrorKindTruncated
		attempt.ErrorMessage = "output truncated at max_tokens"
		return attempt
	}

	attempt.ErrorKind = domain.ErrorKindNone
	lg.Info("completion succeeded",
		slog.Int("prompt_tokens", out.Usage.PromptTokens),
		slog.Int("completion_tokens", out.Usage.CompletionTokens))
	return attempt
}

func (c *Client) fail(a domain.CompletionAttempt, kind domain.ErrorKind, msg string, start time.Time) domain.CompletionAttempt {
	a.ErrorKind = kind
	a.ErrorMessage = msg
	if !start.IsZero() {
		a.Latency = time.Since(start)
	}
	return a
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(status int, body []byte) (domain.ErrorKind, string) {
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	msg = fmt.Sprintf("status %d: %s", status, msg)

	switch {
	case status == http.StatusTooManyRequests || rateLimitPattern.MatchString(msg):
		return domain.ErrorKindRateLimited, msg
	case tokenLimitPattern.MatchString(msg):
		return domain.ErrorKindTokenLimitExceeded, msg
	case status >= 500:
		return domain.ErrorKindServerError, msg
	default:
		return domain.ErrorKindClientError, msg
	}
}

// errorMessage extracts error.message (plus type and code) from an
// OpenAI-style error body, falling back to the raw snippet.
func errorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		parts := []string{env.Error.Message}
		if env.Error.Type != "" {
			parts = append(parts, "type="+env.Error.Type)
		}
		if env.Error.Code != nil {
			parts = append(parts, fmt.Sprintf("code=%v", env.Error.Code))
		}
		return strings.Join(parts, " ")
	}
	return strings.TrimSpace(snippet(body))
}

func snippet(b []byte) string {
	if len(b) > snippetBytes {
		b = b[:snippetBytes]
	}
	return string(b)
}
