package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/prompts"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/config"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

// AnalysisResult is what every analysis operation hands back to its caller.
type AnalysisResult struct {
	ID           string                     `json:"id"`
	Kind         prompts.Kind               `json:"kind"`
	DocumentType domain.DocumentType        `json:"document_type"`
	Result       domain.StructuredResult    `json:"result"`
	Budget       domain.TokenBudget         `json:"budget"`
	Attempts     []domain.CompletionAttempt `json:"attempts"`
	Verdict      *domain.EvaluationVerdict  `json:"verdict,omitempty"`
	Heuristics   *domain.HeuristicReport    `json:"heuristics,omitempty"`
}

// AnalyzeService turns raw documents into structured, optionally judged results.
type AnalyzeService struct {
	Orch    *Orchestrator
	Judge   *Judge
	Backoff config.BackoffConfig
}

// NewAnalyzeService constructs an AnalyzeService. A nil judge disables evaluation.
func NewAnalyzeService(orch *Orchestrator, judge *Judge, bo config.BackoffConfig) AnalyzeService {
	return AnalyzeService{Orch: orch, Judge: judge, Backoff: bo}
}

// Analyze extracts the structured form of req. Heuristics always run on
// success; the judge runs only when evaluate is set.
func (s AnalyzeService) Analyze(ctx domain.Context, req domain.AnalysisRequest, evaluate bool) (AnalysisResult, error) {
	dt, err := domain.ParseDocumentType(string(req.DocumentType))
	if err != nil {
		return AnalysisResult{}, err
	}
	req.DocumentType = dt
	budget := tokencount.EstimateTokenBudget(req.RawText, req.DocumentType)
	kind := prompts.ForDocument(req.DocumentType)
	res, err := s.extract(ctx, kind, req.DocumentType, req.RawText, req.Context, budget,
		prompts.Simplified(req.DocumentType, req.RawText))
	if err != nil {
		return res, err
	}

	h := RunHeuristics(res.Result)
	res.Heuristics = &h
	if evaluate && s.Judge != nil {
		v := s.Judge.Score(ctx, res.Result, req.RawText, req.DocumentType)
		res.Verdict = &v
	}
	return res, nil
}

// AnalyzeWithBackoff retries Analyze on retryable failures using the
// configured exponential policy. Non-retryable failures return immediately.
func (s AnalyzeService) AnalyzeWithBackoff(ctx domain.Context, req domain.AnalysisRequest, evaluate bool) (AnalysisResult, error) {
	var (
		res   AnalysisResult
		tries int
	)
	op := func() error {
		tries++
		var err error
		res, err = s.Analyze(ctx, req, evaluate)
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("analysis failed, backing off",
				slog.Int("try", tries), slog.Any("error", err))
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(s.exponential(), s.Backoff.MaxRetries), ctx)); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return res, err
	}
	return res, nil
}

// MatchJob scores resumeText against a job description.
func (s AnalyzeService) MatchJob(ctx domain.Context, resumeText, jobDescription string) (AnalysisResult, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return AnalysisResult{}, fmt.Errorf("%w: job description is required", domain.ErrInvalidArgument)
	}
	budget := tokencount.EstimateTokenBudget(jobDescription, domain.DocumentCoverLetter)
	return s.extract(ctx, prompts.KindJobMatch, domain.DocumentResume, resumeText,
		map[string]any{prompts.ExtraJobDescription: jobDescription}, budget, "")
}

// TagContent labels the topics, skills and achievements in text.
func (s AnalyzeService) TagContent(ctx domain.Context, text string, extra map[string]any) (AnalysisResult, error) {
	budget := tokencount.EstimateTokenBudget(text, domain.DocumentLinkedIn)
	return s.extract(ctx, prompts.KindContentTagging, domain.DocumentLinkedIn, text, extra, budget, "")
}

// ExtractTemplate turns a cover letter into a reusable template.
func (s AnalyzeService) ExtractTemplate(ctx domain.Context, text string, extra map[string]any) (AnalysisResult, error) {
	budget := tokencount.EstimateTokenBudget(text, domain.DocumentCoverLetter)
	return s.extract(ctx, prompts.KindCoverLetterTemplate, domain.DocumentCoverLetter, text, extra, budget, "")
}

// ExtractStories breaks a cover letter into tagged paragraphs and STAR stories.
func (s AnalyzeService) ExtractStories(ctx domain.Context, text string, extra map[string]any) (AnalysisResult, error) {
	budget := tokencount.EstimateTokenBudget(text, domain.DocumentCoverLetter)
	return s.extract(ctx, prompts.KindCoverLetterStories, domain.DocumentCoverLetter, text, extra, budget,
		prompts.Simplified(domain.DocumentCoverLetter, text))
}

// Evaluate judges an already structured result. The raw result is mapped
// first so the judge and the heuristics see the same defaulted shape.
func (s AnalyzeService) Evaluate(ctx domain.Context, dt domain.DocumentType, raw map[string]any, originalText string) (domain.EvaluationVerdict, domain.HeuristicReport) {
	result := MapToDomain(prompts.ForDocument(dt), raw)
	h := RunHeuristics(result)
	if s.Judge == nil {
		return domain.FailClosedVerdict("evaluation disabled"), h
	}
	return s.Judge.Score(ctx, result, originalText, dt), h
}

func (s AnalyzeService) extract(ctx domain.Context, kind prompts.Kind, dt domain.DocumentType, text string, extra map[string]any, budget domain.TokenBudget, fallback string) (AnalysisResult, error) {
	res := AnalysisResult{
		ID:           uuid.NewString(),
		Kind:         kind,
		DocumentType: dt,
		Budget:       budget,
	}
	lg := observability.LoggerFromContext(ctx).With(
		slog.String("analysis_id", res.ID),
		slog.String("kind", string(kind)))
	lg.Info("analysis started",
		slog.Int("text_len", len(text)),
		slog.Int("token_ceiling", budget.FinalTokenCeiling))

	start := time.Now()
	parsed, attempts, err := s.Orch.Extract(ctx, ExtractRequest{
		System:   prompts.System(),
		Prompt:   prompts.Build(kind, text, extra),
		Ceiling:  budget.FinalTokenCeiling,
		Fallback: fallback,
	})
	res.Attempts = attempts
	if err != nil {
		observability.ObserveAnalysis(string(dt), "failure")
		lg.Error("analysis failed",
			slog.Int("attempts", len(attempts)),
			slog.Bool("retryable", domain.IsRetryable(err)),
			slog.Any("error", err))
		return res, fmt.Errorf("op=analyze.%s: %w", kind, err)
	}

	res.Result = MapToDomain(kind, parsed)
	observability.ObserveAnalysis(string(dt), "success")
	lg.Info("analysis completed",
		slog.Int("attempts", len(attempts)),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (s AnalyzeService) exponential() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	if s.Backoff.InitialInterval > 0 {
		expo.InitialInterval = s.Backoff.InitialInterval
	}
	if s.Backoff.MaxInterval > 0 {
		expo.MaxInterval = s.Backoff.MaxInterval
	}
	if s.Backoff.MaxElapsedTime > 0 {
		expo.MaxElapsedTime = s.Backoff.MaxElapsedTime
	}
	if s.Backoff.Multiplier > 0 {
		expo.Multiplier = s.Backoff.Multiplier
	}
	return expo
}
