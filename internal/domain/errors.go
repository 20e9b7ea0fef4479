package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrNotFound             = errors.New("not found")
	ErrTokenLimitExceeded   = errors.New("token limit exceeded")
	ErrTruncatedOutput      = errors.New("truncated output")
	ErrRateLimited          = errors.New("rate limited")
	ErrUpstreamServer       = errors.New("upstream server error")
	ErrUpstreamClient       = errors.New("upstream client error")
	ErrMalformedJSON        = errors.New("malformed json")
	ErrNetworkFailure       = errors.New("network failure")
)

// SentinelFor maps an attempt error kind to its sentinel.
func SentinelFor(k ErrorKind) error {
	switch k {
	case ErrorKindTokenLimitExceeded:
		return ErrTokenLimitExceeded
	case ErrorKindTruncated:
		return ErrTruncatedOutput
	case ErrorKindRateLimited:
		return ErrRateLimited
	case ErrorKindServerError:
		return ErrUpstreamServer
	case ErrorKindClientError:
		return ErrUpstreamClient
	case ErrorKindMalformedJSON:
		return ErrMalformedJSON
	case ErrorKindNetworkFailure:
		return ErrNetworkFailure
	}
	return nil
}

// CompletionError is the caller-visible failure of an orchestration chain.
type CompletionError struct {
	Kind      ErrorKind
	Retryable bool
	Message   string
	Attempts  []CompletionAttempt
}

// NewCompletionError builds a CompletionError whose retryability follows the kind.
func NewCompletionError(kind ErrorKind, msg string, attempts []CompletionAttempt) *CompletionError {
	return &CompletionError{Kind: kind, Retryable: kind.Retryable(), Message: msg, Attempts: attempts}
}

func (e *CompletionError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the taxonomy sentinel so errors.Is works across layers.
func (e *CompletionError) Unwrap() error { return SentinelFor(e.Kind) }

// Outcome is the {success, error, retryable} envelope handed to callers.
type Outcome struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable"`
}

// OutcomeFrom converts any error into the failure envelope. nil yields success.
func OutcomeFrom(err error) Outcome {
	if err == nil {
		return Outcome{Success: true}
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return Outcome{Error: ce.Error(), Retryable: ce.Retryable}
	}
	return Outcome{Error: err.Error(), Retryable: errors.Is(err, ErrNetworkFailure) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamServer)}
}

// IsRetryable reports whether err is a retryable orchestration failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return OutcomeFrom(err).Retryable
}
