package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/prompts"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/coverletter-assistant/internal/config"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
	"github.com/fairyhunter13/coverletter-assistant/internal/usecase"
)

// Server aggregates handler dependencies. Nil readiness checks are skipped.
type Server struct {
	Cfg        config.Config
	Analysis   usecase.AnalyzeService
	Uploads    usecase.UploadService
	Attempts   usecase.AttemptService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	TikaCheck  func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, analysis usecase.AnalyzeService, uploads usecase.UploadService, attempts usecase.AttemptService, dbCheck, redisCheck, tikaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Analysis: analysis, Uploads: uploads, Attempts: attempts, DBCheck: dbCheck, RedisCheck: redisCheck, TikaCheck: tikaCheck}
}

type analyzeRequest struct {
	RawText      string         `json:"raw_text" validate:"max=200000"`
	DocumentType string         `json:"document_type" validate:"required,doctype"`
	Evaluate     bool           `json:"evaluate"`
	Retry        bool           `json:"retry"`
	Context      map[string]any `json:"context"`
}

type textRequest struct {
	Text    string         `json:"text" validate:"required,max=200000"`
	Context map[string]any `json:"context"`
}

type matchRequest struct {
	ResumeText     string `json:"resume_text" validate:"required,max=200000"`
	JobDescription string `json:"job_description" validate:"required,max=50000"`
}

type evaluateRequest struct {
	Result       map[string]any `json:"result" validate:"required"`
	OriginalText string         `json:"original_text" validate:"max=200000"`
	DocumentType string         `json:"document_type" validate:"required,doctype"`
}

type heuristicsRequest struct {
	Result       map[string]any `json:"result" validate:"required"`
	DocumentType string         `json:"document_type" validate:"omitempty,doctype"`
}

type budgetRequest struct {
	RawText      string `json:"raw_text"`
	DocumentType string `json:"document_type" validate:"required,doctype"`
}

// analysisEnvelope is the success body of every analysis endpoint.
type analysisEnvelope struct {
	Success    bool                       `json:"success"`
	ID         string                     `json:"id"`
	Kind       prompts.Kind               `json:"kind"`
	Data       domain.StructuredResult    `json:"data"`
	Verdict    *domain.EvaluationVerdict  `json:"verdict,omitempty"`
	Heuristics *domain.HeuristicReport    `json:"heuristics,omitempty"`
	Budget     domain.TokenBudget         `json:"budget"`
	Attempts   []domain.CompletionAttempt `json:"attempts"`
}

func envelope(res usecase.AnalysisResult) analysisEnvelope {
	return analysisEnvelope{
		Success:    true,
		ID:         res.ID,
		Kind:       res.Kind,
		Data:       res.Result,
		Verdict:    res.Verdict,
		Heuristics: res.Heuristics,
		Budget:     res.Budget,
		Attempts:   res.Attempts,
	}
}

func (s *Server) respondAnalysis(w http.ResponseWriter, r *http.Request, res usecase.AnalysisResult, err error) {
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope(res))
}

// AnalyzeHandler extracts the structured form of a document.
func (s *Server) AnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		dt, err := domain.ParseDocumentType(req.DocumentType)
		if err != nil {
			writeError(w, r, err, map[string]string{"document_type": "doctype"})
			return
		}
		ar := domain.NewAnalysisRequest(req.RawText, dt, req.Context)
		var res usecase.AnalysisResult
		if req.Retry {
			res, err = s.Analysis.AnalyzeWithBackoff(r.Context(), ar, s.evaluate(req.Evaluate))
		} else {
			res, err = s.Analysis.Analyze(r.Context(), ar, s.evaluate(req.Evaluate))
		}
		s.respondAnalysis(w, r, res, err)
	}
}

// EvaluateHandler judges an already structured result. It always answers
// 200: a judge that cannot decide returns the fail-closed verdict.
func (s *Server) EvaluateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req evaluateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		dt, err := domain.ParseDocumentType(req.DocumentType)
		if err != nil {
			writeError(w, r, err, map[string]string{"document_type": "doctype"})
			return
		}
		v, h := s.Analysis.Evaluate(r.Context(), dt, req.Result, req.OriginalText)
		writeJSON(w, http.StatusOK, map[string]any{"verdict": v, "heuristics": h, "passed": v.Passed()})
	}
}

// HeuristicsHandler runs the model-free checks on a structured result.
func (s *Server) HeuristicsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req heuristicsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		dt := domain.DocumentResume
		if req.DocumentType != "" {
			var err error
			if dt, err = domain.ParseDocumentType(req.DocumentType); err != nil {
				writeError(w, r, err, map[string]string{"document_type": "doctype"})
				return
			}
		}
		result := usecase.MapToDomain(prompts.ForDocument(dt), req.Result)
		writeJSON(w, http.StatusOK, usecase.RunHeuristics(result))
	}
}

// MatchHandler scores a resume against a job description.
func (s *Server) MatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := s.Analysis.MatchJob(r.Context(), req.ResumeText, req.JobDescription)
		s.respondAnalysis(w, r, res, err)
	}
}

// TagsHandler labels topics, skills and achievements in free text.
func (s *Server) TagsHandler() http.HandlerFunc {
	return s.textHandler(s.Analysis.TagContent)
}

// TemplateHandler turns a cover letter into a reusable template.
func (s *Server) TemplateHandler() http.HandlerFunc {
	return s.textHandler(s.Analysis.ExtractTemplate)
}

// StoriesHandler splits a cover letter into paragraphs and STAR stories.
func (s *Server) StoriesHandler() http.HandlerFunc {
	return s.textHandler(s.Analysis.ExtractStories)
}

func (s *Server) textHandler(op func(domain.Context, string, map[string]any) (usecase.AnalysisResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := op(r.Context(), req.Text, req.Context)
		s.respondAnalysis(w, r, res, err)
	}
}

// BudgetHandler reports the token budget for a document without calling the model.
func (s *Server) BudgetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req budgetRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		dt, err := domain.ParseDocumentType(req.DocumentType)
		if err != nil {
			writeError(w, r, err, map[string]string{"document_type": "doctype"})
			return
		}
		writeJSON(w, http.StatusOK, tokencount.EstimateTokenBudget(req.RawText, dt))
	}
}

// UploadHandler accepts a multipart "file" plus "document_type", extracts
// its text and analyzes it.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(r) {
			writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "not acceptable"}})
			return
		}
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.maxUploadBytes()
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) || strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB},
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		dt, err := domain.ParseDocumentType(r.FormValue("document_type"))
		if err != nil {
			writeError(w, r, err, map[string]string{"document_type": "doctype"})
			return
		}
		f, h, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: file required", domain.ErrInvalidArgument), map[string]string{"file": "required"})
			return
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(f)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: file read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		if !allowedExt(h.Filename) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "unsupported media type (extension)", Details: map[string]any{"filename": h.Filename},
			}})
			return
		}
		mt := mimetype.Detect(data)
		if !allowedMIMEFor(mt.String(), h.Filename) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "unsupported media type (content)", Details: map[string]any{"mime": mt.String(), "filename": h.Filename},
			}})
			return
		}

		text, err := s.ingest(r.Context(), h.Filename, mt.String(), data)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		evaluate, _ := strconv.ParseBool(r.FormValue("evaluate"))
		res, err := s.Analysis.Analyze(r.Context(), domain.NewAnalysisRequest(text, dt, nil), s.evaluate(evaluate))
		s.respondAnalysis(w, r, res, err)
	}
}

// ingest spools data to a temp file for the upload service.
func (s *Server) ingest(ctx context.Context, name, mime string, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", fmt.Errorf("op=upload.spool: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("op=upload.spool: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("op=upload.spool: %w", err)
	}
	return s.Uploads.Ingest(ctx, name, tmp.Name(), mime)
}

// AttemptsHandler returns the recorded completion chain for a request id.
func (s *Server) AttemptsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := SanitizeRequestID(chi.URLParam(r, "id"))
		status, res, etag, err := s.Attempts.Fetch(r.Context(), id, r.Header.Get("If-None-Match"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("ETag", etag)
		if status == http.StatusNotModified {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

// ReadyzHandler probes the configured dependencies.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		probes := []struct {
			name string
			fn   func(context.Context) error
		}{{"db", s.DBCheck}, {"redis", s.RedisCheck}, {"tika", s.TikaCheck}}

		checks := make([]check, 0, len(probes))
		st := http.StatusOK
		for _, p := range probes {
			if p.fn == nil {
				continue
			}
			if err := p.fn(ctx); err != nil {
				checks = append(checks, check{Name: p.name, Details: err.Error()})
				st = http.StatusServiceUnavailable
				continue
			}
			checks = append(checks, check{Name: p.name, OK: true})
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

func (s *Server) evaluate(requested bool) bool {
	return requested && s.Cfg.EvaluationEnabled
}

func (s *Server) maxUploadBytes() int64 {
	if s.Cfg.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return s.Cfg.MaxUploadMB << 20
}

// allowedExt enforces the upload allowlist.
func allowedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".pdf", ".docx":
		return true
	}
	return false
}

func allowedMIMEFor(m, filename string) bool {
	m = strings.ToLower(m)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		// detectors sometimes label rich text as text/html
		return strings.HasPrefix(m, "text/")
	}
	if strings.HasPrefix(m, "text/plain") {
		return true
	}
	return m == "application/pdf" || m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}
