// Command server starts the cover letter assistant HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/openai"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/ai/tokencount"
	httpserver "github.com/fairyhunter13/coverletter-assistant/internal/adapter/httpserver"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/repo/postgres"
	tikaext "github.com/fairyhunter13/coverletter-assistant/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/coverletter-assistant/internal/app"
	"github.com/fairyhunter13/coverletter-assistant/internal/config"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
	"github.com/fairyhunter13/coverletter-assistant/internal/service/ratelimiter"
	"github.com/fairyhunter13/coverletter-assistant/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Shared provider throttle (optional)
	var (
		limiter   domain.Limiter
		redisPing app.RedisClient
	)
	if cfg.ThrottleEnabled() {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()
		limiter = ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
			openai.LimiterKey: ratelimiter.NewBucketConfigFromPerMinute(cfg.OpenAIRateLimitPerMin),
		})
		redisPing = app.GoRedis{Client: rdb}
		slog.Info("provider throttle enabled", slog.Int("per_min", cfg.OpenAIRateLimitPerMin))
	}

	// Attempt audit log (optional)
	var (
		recorder domain.AttemptRecorder
		reader   domain.AttemptReader
		dbPing   app.Pinger
	)
	if cfg.AuditEnabled() {
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			slog.Error("db connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			slog.Error("db migrate failed", slog.Any("error", err))
			os.Exit(1)
		}
		repo := postgres.NewAttemptRepo(pool)
		recorder, reader, dbPing = repo, repo, pool

		cleanupSvc := postgres.NewCleanupService(postgres.PoolBeginner{Pool: pool}, cfg.AttemptRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("attempt audit enabled",
			slog.Int("retention_days", cleanupSvc.RetentionDays),
			slog.Duration("cleanup_interval", cfg.CleanupInterval))
	}

	// Completion client
	clientOpts := []openai.Option{openai.WithBreakers(openai.NewBreakers(cfg.CircuitFailureThreshold, cfg.CircuitRecoveryTimeout))}
	if limiter != nil {
		clientOpts = append(clientOpts, openai.WithLimiter(limiter))
	}
	client, err := openai.New(cfg, clientOpts...)
	if err != nil {
		slog.Error("completion client init failed", slog.Any("error", err))
		os.Exit(1)
	}

	orchOpts := []usecase.OrchestratorOption{
		usecase.WithDefaultCeiling(cfg.OpenAIDefaultMaxTokens),
		usecase.WithCounter(tokencount.NewCounter()),
	}
	if recorder != nil {
		orchOpts = append(orchOpts, usecase.WithAttemptRecorder(recorder))
	}
	orch := usecase.NewOrchestrator(client, client.Model(), orchOpts...)

	var judge *usecase.Judge
	if cfg.EvaluationEnabled {
		if judge, err = usecase.NewJudge(orch); err != nil {
			slog.Error("judge init failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ext := tikaext.New(cfg.TikaURL)
	analyzeSvc := usecase.NewAnalyzeService(orch, judge, cfg.GetAIBackoffConfig())
	uploadSvc := usecase.NewUploadService(ext)
	attemptSvc := usecase.NewAttemptService(reader)

	dbCheck, redisCheck, tikaCheck := app.BuildReadinessChecks(cfg, dbPing, redisPing)
	srv := httpserver.NewServer(cfg, analyzeSvc, uploadSvc, attemptSvc, dbCheck, redisCheck, tikaCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting",
			slog.Int("port", cfg.Port),
			slog.String("model", client.Model()),
			slog.Bool("evaluation", judge != nil))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
