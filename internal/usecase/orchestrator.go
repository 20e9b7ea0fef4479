// Package usecase contains application business logic services.
package usecase

import (
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

// MaxHealAttempts bounds the HTTP calls of one Call chain: the initial
// attempt plus at most one token-limit heal and one truncation heal.
const MaxHealAttempts = 3

// DefaultTokenCeiling is used when neither the caller nor the configuration
// supplies a ceiling.
const DefaultTokenCeiling = 2000

// ExtractRequest describes one structured extraction.
type ExtractRequest struct {
	System  string
	Prompt  string
	Ceiling int
	// Fallback is the simplified prompt tried once when the response cannot
	// be parsed. Empty disables the fallback.
	Fallback string
}

// Orchestrator drives the completion client through the bounded heal chain
// and turns the final response into a JSON object.
type Orchestrator struct {
	client         domain.ChatCompleter
	recorder       domain.AttemptRecorder
	counter        *tokencount.Counter
	cleaner        *ai.ResponseCleaner
	model          string
	defaultCeiling int
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAttemptRecorder sends every attempt to r.
func WithAttemptRecorder(r domain.AttemptRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithDefaultCeiling sets the ceiling used by the simplified-prompt fallback.
func WithDefaultCeiling(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.defaultCeiling = n
		}
	}
}

// WithCounter replaces the shared token counter.
func WithCounter(c *tokencount.Counter) OrchestratorOption {
	return func(o *Orchestrator) {
		if c != nil {
			o.counter = c
		}
	}
}

// NewOrchestrator constructs an Orchestrator for model.
func NewOrchestrator(client domain.ChatCompleter, model string, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		client:         client,
		counter:        tokencount.DefaultCounter,
		cleaner:        ai.NewResponseCleaner(),
		model:          model,
		defaultCeiling: DefaultTokenCeiling,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Call runs the heal chain for one prompt and returns the last attempt with
// the whole chain. A chain that ends truncated after its one truncation heal
// returns that attempt without error; parsing decides whether it is usable.
func (o *Orchestrator) Call(ctx domain.Context, system, prompt string, ceiling int) (domain.CompletionAttempt, []domain.CompletionAttempt, error) {
	if ceiling <= 0 {
		ceiling = o.defaultCeiling
	}
	lg := observability.LoggerFromContext(ctx).With(slog.String("model", o.model))

	var (
		chain           []domain.CompletionAttempt
		last            domain.CompletionAttempt
		reason          = domain.RetryNone
		healedTokens    bool
		healedTruncated bool
	)
	for len(chain) < MaxHealAttempts {
		if err := ctx.Err(); err != nil {
			return last, chain, fmt.Errorf("op=orchestrator.Call: %w", err)
		}

		last = o.attempt(ctx, domain.ChatRequest{Model: o.model, System: system, User: prompt, MaxTokens: ceiling}, len(chain)+1, reason)
		chain = append(chain, last)

		var next int
		switch last.ErrorKind {
		case domain.ErrorKindNone:
			return last, chain, nil

		case domain.ErrorKindTokenLimitExceeded:
			if healedTokens {
				return last, chain, domain.NewCompletionError(last.ErrorKind, "token limit still exceeded after heal: "+last.ErrorMessage, chain)
			}
			healedTokens = true
			next = tokencount.TokenLimitCeiling(o.counter.EstimatePromptTokens(system, prompt, o.model))
			reason = domain.RetryTokenLimit

		case domain.ErrorKindTruncated:
			if healedTruncated {
				return last, chain, nil
			}
			grown, ok := tokencount.TruncationCeiling(o.counter.EstimateContentTokens(last.Text(), o.model), ceiling)
			if !ok {
				lg.Warn("truncated at the maximum ceiling", slog.Int("ceiling", ceiling))
				return last, chain, nil
			}
			healedTruncated = true
			next = grown
			reason = domain.RetryTruncation

		default:
			return last, chain, domain.NewCompletionError(last.ErrorKind, last.ErrorMessage, chain)
		}

		lg.Warn("healing completion",
			slog.String("reason", string(reason)),
			slog.String("error_kind", string(last.ErrorKind)),
			slog.Int("from_ceiling", ceiling),
			slog.Int("to_ceiling", next))
		observability.ObserveRetry(string(reason))
		ceiling = next
	}

	// both heals are spent by the third attempt, so the switch above returns
	if last.ErrorKind == domain.ErrorKindTruncated {
		return last, chain, nil
	}
	return last, chain, domain.NewCompletionError(last.ErrorKind, "heal attempts exhausted: "+last.ErrorMessage, chain)
}

// Extract runs Call and parses the final response into a JSON object. When
// the response cannot be repaired it issues exactly one simplified-prompt call
// at the default ceiling before giving up with a retryable malformedJson error.
func (o *Orchestrator) Extract(ctx domain.Context, req ExtractRequest) (map[string]any, []domain.CompletionAttempt, error) {
	last, chain, err := o.Call(ctx, req.System, req.Prompt, req.Ceiling)
	if err != nil {
		return nil, chain, err
	}

	parsed, perr := o.parse(last.Text())
	if perr == nil {
		return parsed, chain, nil
	}
	lg := observability.LoggerFromContext(ctx)
	if req.Fallback == "" {
		lg.Warn("response is not valid JSON", slog.Any("error", perr))
		return nil, chain, domain.NewCompletionError(domain.ErrorKindMalformedJSON, perr.Error(), chain)
	}
	if err := ctx.Err(); err != nil {
		return nil, chain, fmt.Errorf("op=orchestrator.Extract: %w", err)
	}

	lg.Warn("response is not valid JSON, trying simplified prompt", slog.Any("error", perr))
	observability.ObserveRetry(string(domain.RetrySimplifiedPrompt))
	fb := o.attempt(ctx, domain.ChatRequest{Model: o.model, System: req.System, User: req.Fallback, MaxTokens: o.defaultCeiling},
		len(chain)+1, domain.RetrySimplifiedPrompt)
	chain = append(chain, fb)

	if fb.ErrorKind != domain.ErrorKindNone && fb.ErrorKind != domain.ErrorKindTruncated {
		return nil, chain, domain.NewCompletionError(fb.ErrorKind, "simplified prompt failed: "+fb.ErrorMessage, chain)
	}
	parsed, perr = o.parse(fb.Text())
	if perr != nil {
		return nil, chain, domain.NewCompletionError(domain.ErrorKindMalformedJSON, "simplified prompt: "+perr.Error(), chain)
	}
	return parsed, chain, nil
}

func (o *Orchestrator) attempt(ctx domain.Context, req domain.ChatRequest, number int, reason domain.RetryReason) domain.CompletionAttempt {
	a := o.client.Complete(ctx, req)
	a.Number = number
	a.Reason = reason
	if a.TokenCeiling == 0 {
		a.TokenCeiling = req.MaxTokens
	}
	if a.PromptText == "" {
		a.PromptText = req.User
	}
	o.record(ctx, a)
	return a
}

func (o *Orchestrator) record(ctx domain.Context, a domain.CompletionAttempt) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, observability.RequestIDFromContext(ctx), a); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to record completion attempt",
			slog.Int("attempt", a.Number), slog.Any("error", err))
	}
}

func (o *Orchestrator) parse(raw string) (map[string]any, error) {
	parsed, stage, err := o.cleaner.ParseJSONStage(raw)
	observability.ObserveJSONRepair(string(stage))
	return parsed, err
}
