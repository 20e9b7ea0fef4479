// Package ratelimiter throttles outbound completion calls with a token bucket
// kept in Redis, so every replica of the service draws from the same budget.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// BucketConfig sizes one bucket: Capacity tokens, refilled at RefillRate tokens per second.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64
}

// NewBucketConfigFromPerMinute allows perMinute calls per minute with bursts up to perMinute.
func NewBucketConfigFromPerMinute(perMinute int) BucketConfig {
	if perMinute <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(perMinute),
		RefillRate: float64(perMinute) / 60.0,
	}
}

func (c BucketConfig) enabled() bool { return c.Capacity > 0 && c.RefillRate > 0 }

// idleTTL is how long an untouched bucket survives: the time to refill from empty, plus slack.
func (c BucketConfig) idleTTL() time.Duration {
	secs := float64(c.Capacity)/c.RefillRate + 60
	return time.Duration(secs * float64(time.Second))
}

// RedisLuaLimiter implements domain.Limiter. Keys without a configured bucket
// are never throttled, and Redis errors fail open.
type RedisLuaLimiter struct {
	redis   redis.Cmdable
	prefix  string
	buckets map[string]BucketConfig
	script  *redis.Script
	mu      sync.RWMutex
	now     func() time.Time
}

// NewRedisLuaLimiter returns nil when rdb is nil; a nil limiter allows everything.
func NewRedisLuaLimiter(rdb redis.Cmdable, buckets map[string]BucketConfig) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	cp := make(map[string]BucketConfig, len(buckets))
	for k, v := range buckets {
		cp[k] = v
	}
	return &RedisLuaLimiter{
		redis:   rdb,
		prefix:  "ratelimit:",
		buckets: cp,
		script:  redis.NewScript(luaTokenBucketScript),
		now:     time.Now,
	}
}

// KEYS[1] bucket hash; ARGV: capacity, refill per second, now (ms), cost, ttl (ms).
// Returns {allowed, tokens_left, retry_after_ms}.
const luaTokenBucketScript = `
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now

local elapsed = math.max(0, now - ts) / 1000
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local wait = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  wait = math.ceil((cost - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", KEYS[1], ttl)

return { allowed, tostring(tokens), wait }
`

// Allow takes cost tokens from the bucket for key.
func (l *RedisLuaLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || l.redis == nil {
		return true, 0, nil
	}
	cfg, ok := l.bucket(key)
	if !ok || !cfg.enabled() {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}

	nowMs := l.now().UnixMilli()
	res, err := l.script.Run(ctx, l.redis, []string{l.prefix + key},
		cfg.Capacity, cfg.RefillRate, nowMs, cost, cfg.idleTTL().Milliseconds()).Slice()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		return true, 0, fmt.Errorf("op=ratelimiter.Allow: %w", err)
	}
	if len(res) < 3 {
		slog.Error("redis rate limiter unexpected script result", slog.String("key", key), slog.Any("result", res))
		return true, 0, nil
	}

	allowed := toInt64(res[0]) == 1
	waitMs := toInt64(res[2])
	if !allowed {
		slog.Debug("rate limiter denied",
			slog.String("key", key),
			slog.Float64("tokens_left", toFloat64(res[1])),
			slog.Int64("retry_after_ms", waitMs))
	}
	return allowed, time.Duration(waitMs) * time.Millisecond, nil
}

// SetBucketConfig updates or creates the bucket configuration for key.
func (l *RedisLuaLimiter) SetBucketConfig(key string, cfg BucketConfig) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[key] = cfg
}

func (l *RedisLuaLimiter) bucket(key string) (BucketConfig, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cfg, ok := l.buckets[key]
	return cfg, ok
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case int64:
		return float64(t)
	default:
		return math.NaN()
	}
}
