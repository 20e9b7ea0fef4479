package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/httpserver"
	"github.com/fairyhunter13/coverletter-assistant/internal/config"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain/mocks"
	"github.com/fairyhunter13/coverletter-assistant/internal/usecase"
)

const resumeJSON = `{"contactInfo": {"email": "jane@example.com"},
	"workHistory": [{"company": "Acme", "title": "Backend Engineer", "achievements": ["Cut latency 40%"]}],
	"skills": ["Go"], "education": [{"institution": "MIT"}]}`

func okAttempt(text string) domain.CompletionAttempt {
	return domain.CompletionAttempt{ErrorKind: domain.ErrorKindNone, FinishReason: domain.FinishStop, RawResponseText: &text}
}

func scripted(t *testing.T, attempts ...domain.CompletionAttempt) *mocks.MockChatCompleter {
	t.Helper()
	m := &mocks.MockChatCompleter{}
	for _, a := range attempts {
		m.On("Complete", mock.Anything, mock.Anything).Return(a).Once()
	}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func newServer(t *testing.T, cfg config.Config, attempts ...domain.CompletionAttempt) *httpserver.Server {
	t.Helper()
	orch := usecase.NewOrchestrator(scripted(t, attempts...), "gpt-4o-mini")
	judge, err := usecase.NewJudge(orch)
	require.NoError(t, err)
	return httpserver.NewServer(cfg,
		usecase.NewAnalyzeService(orch, judge, config.BackoffConfig{MaxRetries: 0}),
		usecase.NewUploadService(nil),
		usecase.NewAttemptService(nil),
		nil, nil, nil)
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestAnalyzeHandler_Success(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{}, okAttempt(resumeJSON))
	rec := postJSON(srv.AnalyzeHandler(), `{"raw_text": "Jane Doe, Backend Engineer at Acme", "document_type": "cv"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "resume", body["kind"])
	assert.NotEmpty(t, body["id"])
	data := body["data"].(map[string]any)
	assert.Len(t, data["workHistory"], 1)
	assert.Len(t, body["attempts"], 1)
	assert.NotNil(t, body["heuristics"])
	assert.Nil(t, body["verdict"])
	assert.Greater(t, body["budget"].(map[string]any)["final_token_ceiling"], 0.0)
}

func TestAnalyzeHandler_EvaluateRequiresConfig(t *testing.T) {
	t.Parallel()

	verdict := `{"accuracy": "Accurate", "relevance": "Relevant", "personalization": "Personalized",
		"clarity_tone": "Clear", "framework": "Structured", "go_nogo": "Go"}`
	srv := newServer(t, config.Config{EvaluationEnabled: true}, okAttempt(resumeJSON), okAttempt(verdict))
	rec := postJSON(srv.AnalyzeHandler(), `{"raw_text": "resume", "document_type": "resume", "evaluate": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody(t, rec)["verdict"].(map[string]any)
	assert.Equal(t, "Go", v["go_nogo"])

	disabled := newServer(t, config.Config{EvaluationEnabled: false}, okAttempt(resumeJSON))
	rec = postJSON(disabled.AnalyzeHandler(), `{"raw_text": "resume", "document_type": "resume", "evaluate": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody(t, rec)["verdict"])
}

func TestAnalyzeHandler_Validation(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{})
	rec := postJSON(srv.AnalyzeHandler(), `{"raw_text": "x", "document_type": "poem"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "INVALID_ARGUMENT", e["code"])
	assert.Equal(t, "doctype", e["details"].(map[string]any)["document_type"])

	rec = postJSON(srv.AnalyzeHandler(), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_RejectUnknownDocumentType(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{EvaluationEnabled: true})
	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
	}{
		{"analyze", srv.AnalyzeHandler(), `{"raw_text": "x", "document_type": "memo"}`},
		{"evaluate", srv.EvaluateHandler(), `{"result": {}, "original_text": "x", "document_type": "memo"}`},
		{"heuristics", srv.HeuristicsHandler(), `{"result": {}, "document_type": "memo"}`},
		{"budget", srv.BudgetHandler(), `{"raw_text": "x", "document_type": "memo"}`},
	}
	for _, tt := range tests {
		rec := postJSON(tt.handler, tt.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		e := decodeBody(t, rec)["error"].(map[string]any)
		assert.Equal(t, "INVALID_ARGUMENT", e["code"], tt.name)
		assert.Equal(t, "doctype", e["details"].(map[string]any)["document_type"], tt.name)
	}
}

func TestAnalyzeHandler_NotAcceptable(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	srv.AnalyzeHandler()(rec, req)
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestAnalyzeHandler_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		attempt    domain.CompletionAttempt
		wantStatus int
		retryable  bool
	}{
		{"rate_limited", domain.CompletionAttempt{ErrorKind: domain.ErrorKindRateLimited, ErrorMessage: "status 429"}, http.StatusServiceUnavailable, true},
		{"server_error", domain.CompletionAttempt{ErrorKind: domain.ErrorKindServerError, ErrorMessage: "status 502"}, http.StatusServiceUnavailable, true},
		{"client_error", domain.CompletionAttempt{ErrorKind: domain.ErrorKindClientError, ErrorMessage: "status 401"}, http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newServer(t, config.Config{}, tt.attempt)
			rec := postJSON(srv.AnalyzeHandler(), `{"raw_text": "x", "document_type": "resume"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.retryable, body["retryable"])
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, string(tt.attempt.ErrorKind), body["kind"])
		})
	}
}

func TestEvaluateHandler_FailsClosedWithoutJudge(t *testing.T) {
	t.Parallel()

	srv := httpserver.NewServer(config.Config{}, usecase.NewAnalyzeService(nil, nil, config.BackoffConfig{}),
		usecase.NewUploadService(nil), usecase.NewAttemptService(nil), nil, nil, nil)
	rec := postJSON(srv.EvaluateHandler(), `{"result": {"summary": "x"}, "original_text": "x", "document_type": "resume"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["passed"])
	assert.Equal(t, "No-Go", body["verdict"].(map[string]any)["go_nogo"])
}

func TestHeuristicsHandler(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{})
	rec := postJSON(srv.HeuristicsHandler(), `{"result": `+resumeJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["has_work_experience"])
	assert.Equal(t, true, body["has_contact_info"])
	assert.Equal(t, 100.0, body["completeness"])

	rec = postJSON(srv.HeuristicsHandler(), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchHandler_RequiresJobDescription(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{})
	rec := postJSON(srv.MatchHandler(), `{"resume_text": "Go engineer"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decodeBody(t, rec)["error"].(map[string]any)["details"].(map[string]any)["job_description"])
}

func TestMatchHandler_Success(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{}, okAttempt(`{"matchScore": 81, "skillMatches": [{"requirement": "Go"}]}`))
	rec := postJSON(srv.MatchHandler(), `{"resume_text": "Go engineer", "job_description": "We need Go"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, 81.0, data["matchScore"])
}

func TestTextHandlers(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{},
		okAttempt(`{"tags": ["leadership"]}`),
		okAttempt(`{"intro": {"text": "Dear [NAME]"}}`),
		okAttempt(`{"paragraphs": [{"text": "Dear team"}]}`))

	for _, h := range []http.HandlerFunc{srv.TagsHandler(), srv.TemplateHandler(), srv.StoriesHandler()} {
		rec := postJSON(h, `{"text": "Dear team, I led a migration."}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, decodeBody(t, rec)["success"])
	}

	rec := postJSON(srv.TagsHandler(), `{"text": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBudgetHandler(t *testing.T) {
	t.Parallel()

	srv := newServer(t, config.Config{})
	rec := postJSON(srv.BudgetHandler(), `{"raw_text": "", "document_type": "resume"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	ceiling := body["final_token_ceiling"].(float64)
	assert.GreaterOrEqual(t, ceiling, 800.0)
	assert.LessOrEqual(t, ceiling, 5000.0)
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, _ = fw.Write(content)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	t.Parallel()

	t.Run("text file is analyzed", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, config.Config{MaxUploadMB: 1}, okAttempt(resumeJSON))
		body, ct := multipartBody(t, map[string]string{"document_type": "resume"}, "cv.txt", []byte("Jane Doe\nBackend Engineer at Acme"))
		req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		srv.UploadHandler()(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, decodeBody(t, rec)["success"])
	})

	t.Run("unsupported extension", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, config.Config{MaxUploadMB: 1})
		body, ct := multipartBody(t, map[string]string{"document_type": "resume"}, "evil.exe", []byte("MZ"))
		req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		srv.UploadHandler()(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("pdf without extractor", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, config.Config{MaxUploadMB: 1})
		body, ct := multipartBody(t, map[string]string{"document_type": "resume"}, "cv.pdf", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n"))
		req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		srv.UploadHandler()(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, config.Config{MaxUploadMB: 1})
		body, ct := multipartBody(t, map[string]string{"document_type": "resume"}, "", nil)
		req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		srv.UploadHandler()(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, config.Config{MaxUploadMB: 1})
		rec := postJSON(srv.UploadHandler(), `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, config.Config{MaxUploadMB: 1})
		body, ct := multipartBody(t, map[string]string{"document_type": "resume"}, "cv.txt", bytes.Repeat([]byte("a"), 3<<20))
		req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		srv.UploadHandler()(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestAttemptsHandler(t *testing.T) {
	t.Parallel()

	reader := &mocks.MockAttemptReader{}
	reader.On("ListByRequest", mock.Anything, "req-1").Return([]domain.CompletionAttempt{
		{Number: 1, ErrorKind: domain.ErrorKindTruncated},
		{Number: 2, Reason: domain.RetryTruncation, ErrorKind: domain.ErrorKindNone},
	}, nil)
	srv := httpserver.NewServer(config.Config{}, usecase.AnalyzeService{}, usecase.UploadService{},
		usecase.NewAttemptService(reader), nil, nil, nil)

	r := chiRouter(srv)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/attempts/req-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	final := decodeBody(t, rec)["final"].(map[string]any)
	assert.Equal(t, "OK", final["code"])

	req := httptest.NewRequest(http.MethodGet, "/v1/attempts/req-1", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = httptest.NewRecorder()
	chiRouter(newServer(t, config.Config{})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/attempts/req-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadyzHandler(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	bad := func(context.Context) error { return errors.New("connection refused") }

	srv := httpserver.NewServer(config.Config{}, usecase.AnalyzeService{}, usecase.UploadService{}, usecase.AttemptService{}, ok, nil, ok)
	rec := httptest.NewRecorder()
	srv.ReadyzHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["checks"], 2)

	srv.RedisCheck = bad
	rec = httptest.NewRecorder()
	srv.ReadyzHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
