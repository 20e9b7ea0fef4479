package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

func TestWriteError_Mapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{fmt.Errorf("wrap: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrInvalidConfiguration, http.StatusServiceUnavailable, "NOT_CONFIGURED"},
		{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, nil, c.err, nil)
		assert.Equal(t, c.wantStatus, rec.Code, c.wantCode)
		var env errorEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, c.wantCode, env.Error.Code)
	}
}

func TestWriteAnalysisError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeAnalysisError(rec, nil, fmt.Errorf("op=analyze.resume: %w",
		domain.NewCompletionError(domain.ErrorKindRateLimited, "status 429", []domain.CompletionAttempt{{Number: 1}})))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["retryable"])
	assert.Len(t, body["attempts"], 1)

	rec = httptest.NewRecorder()
	writeAnalysisError(rec, nil, domain.NewCompletionError(domain.ErrorKindClientError, "status 400", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	writeAnalysisError(rec, nil, fmt.Errorf("%w: empty", domain.ErrInvalidArgument))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllowedUploads(t *testing.T) {
	t.Parallel()

	for _, n := range []string{"cv.txt", "doc.PDF", "report.Docx", "notes.md"} {
		assert.True(t, allowedExt(n), n)
	}
	for _, n := range []string{"evil.exe", "img.png", "cv"} {
		assert.False(t, allowedExt(n), n)
	}
	assert.True(t, allowedMIMEFor("text/html; charset=utf-8", "cv.txt"))
	assert.False(t, allowedMIMEFor("application/pdf", "cv.txt"))
	assert.True(t, allowedMIMEFor("application/pdf", "cv.pdf"))
	assert.False(t, allowedMIMEFor("application/octet-stream", "cv.pdf"))
}
