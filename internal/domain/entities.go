// Package domain holds the transient entities, ports and error taxonomy shared by
// the orchestration core and its adapters.
package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DocumentType enumerates the kinds of raw text the core knows how to analyze.
type DocumentType string

const (
	DocumentResume      DocumentType = "resume"
	DocumentCoverLetter DocumentType = "coverLetter"
	DocumentCaseStudy   DocumentType = "caseStudy"
	DocumentLinkedIn    DocumentType = "linkedin"
)

// DocumentTypes lists every supported document type in a stable order.
var DocumentTypes = []DocumentType{DocumentResume, DocumentCoverLetter, DocumentCaseStudy, DocumentLinkedIn}

// ParseDocumentType accepts the canonical names plus the snake/kebab aliases
// used by upload pipelines.
func ParseDocumentType(s string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "resume", "cv":
		return DocumentResume, nil
	case "coverletter", "cover_letter", "cover-letter":
		return DocumentCoverLetter, nil
	case "casestudy", "case_study", "case-study":
		return DocumentCaseStudy, nil
	case "linkedin":
		return DocumentLinkedIn, nil
	}
	return "", fmt.Errorf("%w: unknown document type %q", ErrInvalidArgument, s)
}

// AnalysisRequest is created per user action and never mutated afterwards.
type AnalysisRequest struct {
	RawText      string
	DocumentType DocumentType
	Context      map[string]any
}

// NewAnalysisRequest copies the optional context so later caller mutations do
// not leak into the request.
func NewAnalysisRequest(rawText string, docType DocumentType, extra map[string]any) AnalysisRequest {
	var ctxCopy map[string]any
	if len(extra) > 0 {
		ctxCopy = make(map[string]any, len(extra))
		for k, v := range extra {
			ctxCopy[k] = v
		}
	}
	return AnalysisRequest{RawText: rawText, DocumentType: docType, Context: ctxCopy}
}

// TokenBudget is derived purely from an AnalysisRequest.
type TokenBudget struct {
	ContentTokenEstimate int     `json:"content_token_estimate"`
	ComplexityMultiplier float64 `json:"complexity_multiplier"`
	TypeMultiplier       float64 `json:"type_multiplier"`
	StructuralOverhead   int     `json:"structural_overhead"`
	SafetyBufferFactor   float64 `json:"safety_buffer_factor"`
	FinalTokenCeiling    int     `json:"final_token_ceiling"`
}

// ErrorKind classifies the outcome of a single completion attempt.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = "none"
	ErrorKindTokenLimitExceeded ErrorKind = "tokenLimitExceeded"
	ErrorKindRateLimited        ErrorKind = "rateLimited"
	ErrorKindServerError        ErrorKind = "serverError"
	ErrorKindTruncated          ErrorKind = "truncated"
	ErrorKindMalformedJSON      ErrorKind = "malformedJson"
	ErrorKindNetworkFailure     ErrorKind = "networkFailure"
	ErrorKindClientError        ErrorKind = "clientError"
)

// Retryable reports whether a caller may reasonably retry an attempt that
// ended with this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindRateLimited, ErrorKindServerError, ErrorKindNetworkFailure,
		ErrorKindTruncated, ErrorKindTokenLimitExceeded, ErrorKindMalformedJSON:
		return true
	}
	return false
}

// FinishReason mirrors choices[0].finish_reason of the completion API.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
	FinishNone   FinishReason = ""
)

// RetryReason records why an attempt was issued.
type RetryReason string

const (
	RetryNone             RetryReason = "none"
	RetryTokenLimit       RetryReason = "tokenLimit"
	RetryTruncation       RetryReason = "truncation"
	RetrySimplifiedPrompt RetryReason = "simplifiedPrompt"
)

// CompletionAttempt is one immutable hop of a retry chain.
type CompletionAttempt struct {
	Number          int           `json:"number"`
	Reason          RetryReason   `json:"reason"`
	PromptText      string        `json:"-"`
	TokenCeiling    int           `json:"token_ceiling"`
	HTTPStatus      *int          `json:"http_status,omitempty"`
	FinishReason    FinishReason  `json:"finish_reason,omitempty"`
	RawResponseText *string       `json:"-"`
	ErrorKind       ErrorKind     `json:"error_kind"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	Model           string        `json:"model,omitempty"`
	Latency         time.Duration `json:"latency"`
}

// OK reports whether the attempt produced usable text.
func (a CompletionAttempt) OK() bool { return a.ErrorKind == ErrorKindNone && a.RawResponseText != nil }

// Text returns the raw response text or "".
func (a CompletionAttempt) Text() string {
	if a.RawResponseText == nil {
		return ""
	}
	return *a.RawResponseText
}

// ChatRequest is the provider-neutral shape of one completion call.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Ports

// ChatCompleter issues exactly one completion request and classifies the
// response. Implementations never retry internally.
type ChatCompleter interface {
	Complete(ctx Context, req ChatRequest) CompletionAttempt
}

// AttemptRecorder receives every attempt of a chain. It is an audit sink;
// failures to record never affect the chain.
type AttemptRecorder interface {
	Record(ctx Context, requestID string, a CompletionAttempt) error
}

// AttemptReader lists the recorded chain of one request, oldest first.
type AttemptReader interface {
	ListByRequest(ctx Context, requestID string) ([]CompletionAttempt, error)
}

// Limiter throttles outbound provider calls.
type Limiter interface {
	Allow(ctx Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// TextExtractor extracts text from a file at path with the provided original filename.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// Context is an alias to keep adapters decoupled from where context comes from.
type Context = context.Context
