package usecase

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
	"github.com/fairyhunter13/coverletter-assistant/pkg/textx"
)

// UploadService turns an uploaded file into sanitized raw text for analysis.
type UploadService struct {
	Extractor domain.TextExtractor
}

// NewUploadService constructs an UploadService. A nil extractor limits
// uploads to plain text.
func NewUploadService(x domain.TextExtractor) UploadService { return UploadService{Extractor: x} }

// Ingest reads the file at path and returns its sanitized text. Plain text is
// read directly; anything else goes through the extractor.
func (s UploadService) Ingest(ctx domain.Context, fileName, path, mime string) (string, error) {
	var (
		text   string
		err    error
		source = "tika"
	)
	if isPlainText(mime, fileName) {
		var b []byte
		source = "plain"
		b, err = os.ReadFile(path)
		text = string(b)
	} else {
		if s.Extractor == nil {
			return "", fmt.Errorf("%w: unsupported file type %s", domain.ErrInvalidArgument, mime)
		}
		text, err = s.Extractor.ExtractPath(ctx, fileName, path)
	}
	if err != nil {
		observability.ObserveExtraction(source, "failure")
		return "", fmt.Errorf("op=upload.Ingest: %w", err)
	}

	text = textx.SanitizeText(text)
	if text == "" {
		observability.ObserveExtraction(source, "empty")
		return "", fmt.Errorf("%w: empty extracted text", domain.ErrInvalidArgument)
	}
	observability.ObserveExtraction(source, "success")
	observability.LoggerFromContext(ctx).Info("upload ingested",
		slog.String("file", fileName),
		slog.String("mime", mime),
		slog.Int("chars", len(text)))
	return text, nil
}

func isPlainText(mime, name string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".txt") || strings.HasSuffix(n, ".md")
}
