package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain/mocks"
	"github.com/fairyhunter13/coverletter-assistant/internal/usecase"
)

const testModel = "gpt-4o-mini"

func okAttempt(text string) domain.CompletionAttempt {
	return domain.CompletionAttempt{ErrorKind: domain.ErrorKindNone, FinishReason: domain.FinishStop, RawResponseText: &text}
}

func truncatedAttempt(text string) domain.CompletionAttempt {
	return domain.CompletionAttempt{ErrorKind: domain.ErrorKindTruncated, FinishReason: domain.FinishLength, RawResponseText: &text}
}

func failedAttempt(kind domain.ErrorKind, msg string) domain.CompletionAttempt {
	return domain.CompletionAttempt{ErrorKind: kind, ErrorMessage: msg}
}

// scripted returns a completer that answers with attempts in order.
func scripted(t *testing.T, attempts ...domain.CompletionAttempt) *mocks.MockChatCompleter {
	t.Helper()
	m := &mocks.MockChatCompleter{}
	for _, a := range attempts {
		m.On("Complete", mock.Anything, mock.AnythingOfType("domain.ChatRequest")).Return(a).Once()
	}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func requestsOf(m *mocks.MockChatCompleter) []domain.ChatRequest {
	out := make([]domain.ChatRequest, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(1).(domain.ChatRequest))
	}
	return out
}

func TestOrchestrator_Call_SuccessFirstTry(t *testing.T) {
	t.Parallel()

	client := scripted(t, okAttempt(`{"a":1}`))
	o := usecase.NewOrchestrator(client, testModel)

	last, chain, err := o.Call(context.Background(), "sys", "prompt", 1200)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, 1, last.Number)
	assert.Equal(t, domain.RetryNone, last.Reason)
	assert.Equal(t, 1200, last.TokenCeiling)

	reqs := requestsOf(client)
	assert.Equal(t, "sys", reqs[0].System)
	assert.Equal(t, "prompt", reqs[0].User)
	assert.Equal(t, testModel, reqs[0].Model)
}

func TestOrchestrator_Call_ZeroCeilingUsesDefault(t *testing.T) {
	t.Parallel()

	client := scripted(t, okAttempt(`{}`))
	o := usecase.NewOrchestrator(client, testModel, usecase.WithDefaultCeiling(1500))

	_, _, err := o.Call(context.Background(), "sys", "prompt", 0)
	require.NoError(t, err)
	assert.Equal(t, 1500, requestsOf(client)[0].MaxTokens)
}

func TestOrchestrator_Call_TruncationRetriesOnceWithLargerCeiling(t *testing.T) {
	t.Parallel()

	client := scripted(t, truncatedAttempt(`{"a": [1,`), okAttempt(`{"a": [1, 2]}`))
	o := usecase.NewOrchestrator(client, testModel)

	last, chain, err := o.Call(context.Background(), "sys", "prompt", 1000)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, domain.RetryTruncation, last.Reason)
	assert.Equal(t, 2, last.Number)

	reqs := requestsOf(client)
	assert.Greater(t, reqs[1].MaxTokens, reqs[0].MaxTokens)
	assert.Equal(t, 1500, reqs[1].MaxTokens)
}

func TestOrchestrator_Call_SecondTruncationReturnsAttempt(t *testing.T) {
	t.Parallel()

	client := scripted(t, truncatedAttempt(`{"a": [1,`), truncatedAttempt(`{"a": [1, 2,`))
	o := usecase.NewOrchestrator(client, testModel)

	last, chain, err := o.Call(context.Background(), "sys", "prompt", 1000)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, domain.ErrorKindTruncated, last.ErrorKind)
	assert.Equal(t, `{"a": [1, 2,`, last.Text())
}

func TestOrchestrator_Call_TruncatedAtMaximumDoesNotRetry(t *testing.T) {
	t.Parallel()

	client := scripted(t, truncatedAttempt(`{"a":`))
	o := usecase.NewOrchestrator(client, testModel)

	_, chain, err := o.Call(context.Background(), "sys", "prompt", tokencount.MaxTokenCeiling)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestOrchestrator_Call_TokenLimitHeal(t *testing.T) {
	t.Parallel()

	client := scripted(t,
		failedAttempt(domain.ErrorKindTokenLimitExceeded, "maximum context length exceeded"),
		okAttempt(`{}`))
	o := usecase.NewOrchestrator(client, testModel)

	last, chain, err := o.Call(context.Background(), "sys", "a short prompt", 4500)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, domain.RetryTokenLimit, last.Reason)

	want := tokencount.TokenLimitCeiling(tokencount.DefaultCounter.EstimatePromptTokens("sys", "a short prompt", testModel))
	assert.Equal(t, want, requestsOf(client)[1].MaxTokens)
}

func TestOrchestrator_Call_TokenLimitTwiceFails(t *testing.T) {
	t.Parallel()

	client := scripted(t,
		failedAttempt(domain.ErrorKindTokenLimitExceeded, "too many tokens"),
		failedAttempt(domain.ErrorKindTokenLimitExceeded, "too many tokens"))
	o := usecase.NewOrchestrator(client, testModel)

	_, chain, err := o.Call(context.Background(), "sys", "prompt", 2000)
	require.Error(t, err)
	assert.Len(t, chain, 2)

	var ce *domain.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.ErrorKindTokenLimitExceeded, ce.Kind)
	assert.True(t, ce.Retryable)
	assert.ErrorIs(t, err, domain.ErrTokenLimitExceeded)
	assert.Len(t, ce.Attempts, 2)
}

func TestOrchestrator_Call_ChainIsBounded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   []domain.CompletionAttempt
		wantErr  bool
		wantLast domain.ErrorKind
	}{
		{
			name: "token_limit_then_truncated_twice",
			script: []domain.CompletionAttempt{
				failedAttempt(domain.ErrorKindTokenLimitExceeded, "context length"),
				truncatedAttempt(`{"a":`),
				truncatedAttempt(`{"a": 1,`),
			},
			wantLast: domain.ErrorKindTruncated,
		},
		{
			name: "truncated_then_token_limit_twice",
			script: []domain.CompletionAttempt{
				truncatedAttempt(`{"a":`),
				failedAttempt(domain.ErrorKindTokenLimitExceeded, "context length"),
				failedAttempt(domain.ErrorKindTokenLimitExceeded, "context length"),
			},
			wantErr:  true,
			wantLast: domain.ErrorKindTokenLimitExceeded,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := scripted(t, tt.script...)
			o := usecase.NewOrchestrator(client, testModel)

			last, chain, err := o.Call(context.Background(), "sys", "prompt", 1000)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.LessOrEqual(t, len(chain), usecase.MaxHealAttempts)
			assert.Len(t, chain, 3)
			assert.Equal(t, tt.wantLast, last.ErrorKind)
			for i, a := range chain {
				assert.Equal(t, i+1, a.Number)
			}
		})
	}
}

func TestOrchestrator_Call_FailuresAreNotRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind      domain.ErrorKind
		retryable bool
	}{
		{domain.ErrorKindRateLimited, true},
		{domain.ErrorKindServerError, true},
		{domain.ErrorKindNetworkFailure, true},
		{domain.ErrorKindClientError, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()

			client := scripted(t, failedAttempt(tt.kind, "boom"))
			o := usecase.NewOrchestrator(client, testModel)

			_, chain, err := o.Call(context.Background(), "sys", "prompt", 1000)
			require.Error(t, err)
			assert.Len(t, chain, 1)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
			assert.Equal(t, tt.retryable, domain.OutcomeFrom(err).Retryable)
		})
	}
}

func TestOrchestrator_Call_CancelledContext(t *testing.T) {
	t.Parallel()

	client := &mocks.MockChatCompleter{}
	o := usecase.NewOrchestrator(client, testModel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, chain, err := o.Call(ctx, "sys", "prompt", 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, chain)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestOrchestrator_Extract_ParsesRepairedJSON(t *testing.T) {
	t.Parallel()

	client := scripted(t, okAttempt("```json\n{\"skills\": [\"A\",\"B\",],}\n```"))
	o := usecase.NewOrchestrator(client, testModel)

	parsed, chain, err := o.Extract(context.Background(), usecase.ExtractRequest{System: "sys", Prompt: "p", Ceiling: 1000, Fallback: "simple"})
	require.NoError(t, err)
	assert.Len(t, chain, 1)
	assert.Equal(t, []any{"A", "B"}, parsed["skills"])
}

func TestOrchestrator_Extract_SimplifiedFallback(t *testing.T) {
	t.Parallel()

	client := scripted(t, okAttempt("I am unable to help with that."), okAttempt(`{"summary": "ok"}`))
	o := usecase.NewOrchestrator(client, testModel, usecase.WithDefaultCeiling(1800))

	parsed, chain, err := o.Extract(context.Background(), usecase.ExtractRequest{System: "sys", Prompt: "full", Ceiling: 3000, Fallback: "simple"})
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "ok", parsed["summary"])
	assert.Equal(t, domain.RetrySimplifiedPrompt, chain[1].Reason)

	reqs := requestsOf(client)
	assert.Equal(t, "simple", reqs[1].User)
	assert.Equal(t, 1800, reqs[1].MaxTokens)
}

func TestOrchestrator_Extract_FallbackAlsoMalformed(t *testing.T) {
	t.Parallel()

	client := scripted(t, okAttempt("no json"), okAttempt("still no json"))
	o := usecase.NewOrchestrator(client, testModel)

	parsed, chain, err := o.Extract(context.Background(), usecase.ExtractRequest{System: "sys", Prompt: "full", Fallback: "simple"})
	require.Error(t, err)
	assert.Nil(t, parsed)
	assert.Len(t, chain, 2)

	var ce *domain.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.ErrorKindMalformedJSON, ce.Kind)
	assert.True(t, ce.Retryable)
	assert.ErrorIs(t, err, domain.ErrMalformedJSON)
}

func TestOrchestrator_Extract_NoFallbackConfigured(t *testing.T) {
	t.Parallel()

	client := scripted(t, okAttempt("no json"))
	o := usecase.NewOrchestrator(client, testModel)

	_, chain, err := o.Extract(context.Background(), usecase.ExtractRequest{System: "sys", Prompt: "full"})
	require.Error(t, err)
	assert.Len(t, chain, 1)
	assert.ErrorIs(t, err, domain.ErrMalformedJSON)
}

func TestOrchestrator_Extract_TruncatedTwiceThenFallback(t *testing.T) {
	t.Parallel()

	client := scripted(t,
		truncatedAttempt(`{"a": [1,`),
		truncatedAttempt(`{"a": [1, 2,`),
		okAttempt(`{"a": []}`))
	o := usecase.NewOrchestrator(client, testModel)

	parsed, chain, err := o.Extract(context.Background(), usecase.ExtractRequest{System: "sys", Prompt: "full", Ceiling: 1000, Fallback: "simple"})
	require.NoError(t, err)
	assert.Len(t, chain, 3)
	assert.Equal(t, []any{}, parsed["a"])
}

func TestOrchestrator_RecordsEveryAttempt(t *testing.T) {
	t.Parallel()

	client := scripted(t, truncatedAttempt(`{"a":`), okAttempt(`{"a": 1}`))
	rec := &mocks.MockAttemptRecorder{}
	rec.On("Record", mock.Anything, "req-42", mock.MatchedBy(func(a domain.CompletionAttempt) bool { return a.Number == 1 })).
		Return(errors.New("db down")).Once()
	rec.On("Record", mock.Anything, "req-42", mock.MatchedBy(func(a domain.CompletionAttempt) bool {
		return a.Number == 2 && a.Reason == domain.RetryTruncation
	})).Return(nil).Once()

	o := usecase.NewOrchestrator(client, testModel, usecase.WithAttemptRecorder(rec))
	ctx := observability.ContextWithRequestID(context.Background(), "req-42")

	_, _, err := o.Extract(ctx, usecase.ExtractRequest{System: "sys", Prompt: "p", Ceiling: 1000})
	require.NoError(t, err)
	rec.AssertExpectations(t)
}
