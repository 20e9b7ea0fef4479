// Package tokencount sizes completion requests.
//
// It counts tokens with tiktoken-go, a Go port of OpenAI's tiktoken library,
// using the offline BPE loader so no network access is needed at runtime. It
// also derives the heuristic output-token budget for an analysis request and
// the adjusted ceilings used when a completion has to be healed.
package tokencount

import (
	"strings"
	"sync"

	"log/slog"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

var loaderOnce sync.Once

// Counter provides thread-safe token counting for chat models.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	loaderOnce.Do(func() { tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader()) })
	return &Counter{
		encodingCache: make(map[string]*tiktoken.Tiktoken),
	}
}

// DefaultCounter is a global token counter instance.
var DefaultCounter = NewCounter()

// getEncodingForModel returns the appropriate tiktoken encoding for a model.
func (c *Counter) getEncodingForModel(model string) (*tiktoken.Tiktoken, error) {
	normalizedModel := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalizedModel]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodingCache[normalizedModel]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(normalizedModel)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.String("normalized", normalizedModel),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	c.encodingCache[normalizedModel] = enc
	return enc, nil
}

// normalizeModelName converts model IDs to tiktoken-compatible names.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)

	// provider-prefixed ids, e.g. "openai/gpt-4o-mini"
	if strings.Contains(model, "/") {
		parts := strings.Split(model, "/")
		model = parts[len(parts)-1]
	}

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "gpt-4o"
	case strings.Contains(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	default:
		// cl100k_base is a reasonable approximation for everything else
		return "gpt-4"
	}
}

// CountTokens counts the number of tokens in a text string for a given model.
func (c *Counter) CountTokens(text, model string) (int, error) {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountChatTokens counts tokens for a system+user chat request including the
// per-message overhead of OpenAI-compatible APIs.
func (c *Counter) CountChatTokens(systemPrompt, userPrompt, model string) (int, error) {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		return 0, err
	}

	// 3 tokens per message + 1 for role, see the OpenAI cookbook
	tokensPerMessage := 3
	tokensPerRole := 1

	numTokens := 0
	numTokens += tokensPerMessage + len(enc.Encode("system", nil, nil)) + len(enc.Encode(systemPrompt, nil, nil)) + tokensPerRole
	numTokens += tokensPerMessage + len(enc.Encode("user", nil, nil)) + len(enc.Encode(userPrompt, nil, nil)) + tokensPerRole
	// every reply is primed with <|start|>assistant<|message|>
	numTokens += 3
	return numTokens, nil
}

// EstimatePromptTokens counts chat tokens, falling back to ~4 chars per token
// when no encoding is available.
func (c *Counter) EstimatePromptTokens(systemPrompt, userPrompt, model string) int {
	n, err := c.CountChatTokens(systemPrompt, userPrompt, model)
	if err != nil {
		slog.Warn("failed to count prompt tokens, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		return (len(systemPrompt) + len(userPrompt)) / 4
	}
	return n
}

// EstimateContentTokens counts tokens of a completion with the same fallback.
func (c *Counter) EstimateContentTokens(completion, model string) int {
	n, err := c.CountTokens(completion, model)
	if err != nil {
		slog.Warn("failed to count completion tokens, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		return len(completion) / 4
	}
	return n
}
