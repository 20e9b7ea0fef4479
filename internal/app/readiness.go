package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/coverletter-assistant/internal/config"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// RedisPingResult is the minimal return type of a Redis client's Ping.
type RedisPingResult interface{ Err() error }

// RedisClient is the minimal interface for a Redis client needed for readiness.
type RedisClient interface {
	Ping(ctx context.Context) RedisPingResult
}

// GoRedis adapts a go-redis client to RedisClient.
type GoRedis struct{ Client redis.UniversalClient }

// Ping implements RedisClient.
func (g GoRedis) Ping(ctx context.Context) RedisPingResult { return g.Client.Ping(ctx) }

// BuildReadinessChecks returns the db, redis and tika checks. A dependency
// that is not configured yields a nil check, which readiness skips.
func BuildReadinessChecks(cfg config.Config, pool Pinger, rdb RedisClient) (dbCheck, redisCheck, tikaCheck func(ctx context.Context) error) {
	if pool != nil {
		dbCheck = pool.Ping
	}
	if rdb != nil {
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if cfg.TikaURL != "" {
		base := strings.TrimRight(cfg.TikaURL, "/")
		client := &http.Client{Timeout: 2 * time.Second}
		tikaCheck = func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/version", nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			return fmt.Errorf("tika status %d", resp.StatusCode)
		}
	}
	return dbCheck, redisCheck, tikaCheck
}
