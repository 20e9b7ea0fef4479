package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

// AttemptService provides read access to recorded completion chains and
// assembles the API response with ETag handling.
type AttemptService struct {
	Attempts domain.AttemptReader
}

// NewAttemptService constructs an AttemptService.
func NewAttemptService(r domain.AttemptReader) AttemptService {
	return AttemptService{Attempts: r}
}

// Fetch returns the HTTP status code, response body and ETag for the chain
// recorded under requestID. A matching If-None-Match yields 304.
func (s AttemptService) Fetch(ctx domain.Context, requestID, ifNoneMatch string) (int, map[string]any, string, error) {
	if requestID == "" {
		return http.StatusBadRequest, nil, "", fmt.Errorf("%w: request id required", domain.ErrInvalidArgument)
	}
	if s.Attempts == nil {
		return http.StatusNotFound, nil, "", fmt.Errorf("%w: attempt audit disabled", domain.ErrNotFound)
	}
	lg := observability.LoggerFromContext(ctx).With(slog.String("lookup_request_id", requestID))

	attempts, err := s.Attempts.ListByRequest(ctx, requestID)
	if err != nil {
		lg.Error("failed to list attempts", slog.Any("error", err))
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, nil, "", err
		}
		return http.StatusInternalServerError, nil, "", err
	}
	if len(attempts) == 0 {
		return http.StatusNotFound, nil, "", fmt.Errorf("%w: no attempts for request %s", domain.ErrNotFound, requestID)
	}

	last := attempts[len(attempts)-1]
	m := map[string]any{
		"request_id": requestID,
		"attempts":   attempts,
		"final": map[string]any{
			"error_kind": last.ErrorKind,
			"code":       ErrorCode(last.ErrorKind),
			"retryable":  last.ErrorKind.Retryable(),
		},
	}
	etag := makeETag(m)
	if etag == ifNoneMatch {
		return http.StatusNotModified, nil, etag, nil
	}
	return http.StatusOK, m, etag, nil
}

func makeETag(v any) string {
	b, _ := json.Marshal(v)
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

// ErrorCode maps an attempt error kind to a stable API error code.
func ErrorCode(k domain.ErrorKind) string {
	switch k {
	case domain.ErrorKindNone:
		return "OK"
	case domain.ErrorKindMalformedJSON, domain.ErrorKindTruncated:
		return "SCHEMA_INVALID"
	case domain.ErrorKindRateLimited:
		return "UPSTREAM_RATE_LIMIT"
	case domain.ErrorKindNetworkFailure:
		return "UPSTREAM_TIMEOUT"
	case domain.ErrorKindTokenLimitExceeded:
		return "TOKEN_LIMIT"
	case domain.ErrorKindClientError:
		return "UPSTREAM_REJECTED"
	default:
		return "INTERNAL"
	}
}
