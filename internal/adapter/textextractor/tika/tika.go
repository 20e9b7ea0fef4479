// Package tika extracts plain text from uploaded documents through an
// Apache Tika server (PUT /tika with Accept: text/plain).
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/pkg/textx"
)

const (
	defaultBaseURL = "http://localhost:9998"
	// maxExtractedBytes caps the text read back from Tika.
	maxExtractedBytes = 4 << 20
)

// Client is a minimal Apache Tika HTTP client implementing domain.TextExtractor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// roots are the directories files may be read from.
	roots []string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithAllowedRoots adds directories uploads may be read from.
func WithAllowedRoots(dirs ...string) Option {
	return func(c *Client) {
		for _, d := range dirs {
			if abs, err := filepath.Abs(d); err == nil {
				c.roots = append(c.roots, filepath.Clean(abs))
			}
		}
	}
}

// New constructs a Tika client. Files are only read from the system temp
// dir unless more roots are allowed.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		roots: []string{filepath.Clean(os.TempDir())},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ExtractPath uploads the file at path to the Tika server and returns its
// text with whitespace collapsed.
func (c *Client) ExtractPath(ctx context.Context, fileName, path string) (string, error) {
	p, err := c.resolve(path)
	if err != nil {
		return "", fmt.Errorf("op=tika.resolve: %w", err)
	}
	body, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("op=tika.read: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tika", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("op=tika.request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", ContentType(fileName, body))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=tika.do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("op=tika.do: tika status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxExtractedBytes))
	if err != nil {
		return "", fmt.Errorf("op=tika.read_body: %w", err)
	}

	text := strings.Join(strings.Fields(textx.SanitizeText(string(b))), " ")
	observability.LoggerFromContext(ctx).Debug("tika extraction done",
		slog.String("file", fileName),
		slog.Int("chars", len(text)),
		slog.Duration("duration", time.Since(start)))
	return text, nil
}

// resolve returns the cleaned absolute path when it lies under an allowed root.
func (c *Client) resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	for _, root := range c.roots {
		if abs == root || strings.HasPrefix(abs, root+string(os.PathSeparator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("disallowed path: %s", abs)
}

// ContentType picks the upload Content-Type: known document extensions win,
// otherwise the bytes are sniffed.
func ContentType(fileName string, body []byte) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt", ".md":
		return "text/plain"
	}
	return mimetype.Detect(body).String()
}
