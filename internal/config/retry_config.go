package config

import (
	"time"
)

// BackoffConfig holds the caller-side retry policy applied to retryable
// analysis failures.
type BackoffConfig struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxRetries      uint64
}

// GetAIBackoffConfig returns backoff configuration appropriate for the current environment.
// In test environments, uses much shorter timeouts for faster test execution.
func (c Config) GetAIBackoffConfig() BackoffConfig {
	if c.IsTest() {
		return BackoffConfig{
			MaxElapsedTime:  2 * time.Second,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      2.0,
			MaxRetries:      c.AIBackoffMaxRetries,
		}
	}
	return BackoffConfig{
		MaxElapsedTime:  c.AIBackoffMaxElapsedTime,
		InitialInterval: c.AIBackoffInitialInterval,
		MaxInterval:     c.AIBackoffMaxInterval,
		Multiplier:      c.AIBackoffMultiplier,
		MaxRetries:      c.AIBackoffMaxRetries,
	}
}
