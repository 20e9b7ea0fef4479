// Package ai provides response cleaning utilities for handling malformed LLM responses.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// Stage names the cleaning step that produced parseable JSON.
type Stage string

const (
	StageClean    Stage = "clean"
	StageRepaired Stage = "repaired"
	StageFailed   Stage = "failed"
)

// ResponseCleaner turns model output into a JSON object. Valid JSON parses
// as is; otherwise it strips leading Markdown fences and surrounding prose,
// then falls back to text-level repairs of the mistakes models commonly make.
type ResponseCleaner struct{}

// NewResponseCleaner creates a new response cleaner.
func NewResponseCleaner() *ResponseCleaner {
	return &ResponseCleaner{}
}

// ParseJSON parses raw model output into a JSON object.
func (rc *ResponseCleaner) ParseJSON(raw string) (map[string]any, error) {
	out, _, err := rc.ParseJSONStage(raw)
	return out, err
}

// ParseJSONStage is ParseJSON that also reports which stage succeeded.
func (rc *ResponseCleaner) ParseJSONStage(raw string) (map[string]any, Stage, error) {
	cleaned, stage, err := rc.clean(raw)
	if err != nil {
		return nil, stage, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, StageFailed, &MalformedJSONError{Original: raw, Cleaned: cleaned, Message: err.Error()}
	}
	return out, stage, nil
}

func (rc *ResponseCleaner) clean(raw string) (string, Stage, error) {
	trimmed := strings.TrimSpace(raw)
	if rc.isJSONObject(trimmed) {
		return trimmed, StageClean, nil
	}

	// stage 1: fences and surrounding prose. Fences may also sit inside
	// string values, so the unfenced slice stays a candidate.
	candidates := []string{rc.extractJSON(trimmed)}
	if fenceLeads(trimmed) {
		candidates = append([]string{rc.extractJSON(rc.removeMarkdownBlocks(trimmed))}, candidates...)
	}
	for _, c := range candidates {
		if rc.isJSONObject(c) {
			return c, StageClean, nil
		}
	}

	// stage 2: text-level repairs
	first := ""
	for i, c := range candidates {
		repaired := rc.repair(c)
		if rc.isJSONObject(repaired) {
			return repaired, StageRepaired, nil
		}
		if i == 0 {
			first = repaired
		}
	}

	return "", StageFailed, &MalformedJSONError{
		Original: raw,
		Cleaned:  first,
		Message:  "response is not valid JSON after repair",
	}
}

// fenceLeads reports whether a Markdown fence opens before the first brace.
func fenceLeads(s string) bool {
	fence := strings.Index(s, "```")
	if fence < 0 {
		return false
	}
	brace := strings.Index(s, "{")
	return brace < 0 || fence < brace
}

func (rc *ResponseCleaner) isJSONObject(s string) bool {
	var m map[string]any
	return json.Unmarshal([]byte(s), &m) == nil
}

// removeMarkdownBlocks keeps the body of the first fenced block, if any.
func (rc *ResponseCleaner) removeMarkdownBlocks(response string) string {
	if m := fencePattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	// an opening fence without a closing one, typical of truncated output
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimPrefix(response, "```")
	}
	return strings.TrimSpace(response)
}

// extractJSON slices from the first { to the last }.
func (rc *ResponseCleaner) extractJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return response
	}
	return response[start : end+1]
}

// repair walks the text outside string literals and fixes trailing commas,
// bare keys, bare scalar values and single-quoted strings.
func (rc *ResponseCleaner) repair(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"':
			end := scanString(s, i, '"')
			b.WriteString(s[i:end])
			i = end
		case c == '\'':
			end := scanString(s, i, '\'')
			body := s[i+1 : end]
			if end <= len(s) && end > i+1 && s[end-1] == '\'' {
				body = s[i+1 : end-1]
			}
			b.WriteString(quote(strings.ReplaceAll(body, `\'`, `'`)))
			i = end
		case c == ',':
			j := skipSpace(s, i+1)
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				i = j
				continue
			}
			b.WriteByte(c)
			i++
		case isStructural(c) || isSpace(c):
			b.WriteByte(c)
			i++
		default:
			end := scanBare(s, i)
			tok := strings.TrimSpace(s[i:end])
			trailing := s[i+len(strings.TrimRight(s[i:end], " \t\r\n")) : end]
			if end < len(s) && s[end] == ':' {
				b.WriteString(quote(tok))
			} else if json.Valid([]byte(tok)) {
				b.WriteString(tok)
			} else {
				b.WriteString(quote(tok))
			}
			b.WriteString(trailing)
			i = end
		}
	}
	return b.String()
}

// scanString returns the index just past the closing delimiter of the string
// literal starting at s[start], or len(s) when it is unterminated.
func scanString(s string, start int, delim byte) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case delim:
			return i + 1
		}
	}
	return len(s)
}

// scanBare returns the end of an unquoted token: the next separator, colon or newline.
func scanBare(s string, start int) int {
	for i := start; i < len(s); i++ {
		switch s[i] {
		case ',', '}', ']', ':', '\n':
			return i
		}
	}
	return len(s)
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isStructural(c byte) bool {
	return c == '{' || c == '}' || c == '[' || c == ']' || c == ':'
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// MalformedJSONError reports a response that could not be repaired into JSON.
type MalformedJSONError struct {
	Original string
	Cleaned  string
	Message  string
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("malformed json: %s", e.Message)
}

func (e *MalformedJSONError) Unwrap() error { return domain.ErrMalformedJSON }
