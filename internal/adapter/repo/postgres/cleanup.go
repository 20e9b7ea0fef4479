package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Tx is the subset of pgx.Tx the cleanup needs.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner starts transactions.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// PoolBeginner adapts a pgx pool to Beginner.
type PoolBeginner struct {
	Pool interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	}
}

// Begin implements Beginner.
func (b PoolBeginner) Begin(ctx context.Context) (Tx, error) { return b.Pool.Begin(ctx) }

// CleanupService purges audit rows older than the retention window.
type CleanupService struct {
	DB            Beginner
	RetentionDays int
	now           func() time.Time
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(db Beginner, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &CleanupService{DB: db, RetentionDays: retentionDays, now: time.Now}
}

// CleanupOldData removes attempts older than the retention period.
func (s *CleanupService) CleanupOldData(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.RetentionDays)

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM completion_attempts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.delete: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=cleanup.commit: %w", err)
	}

	slog.Info("attempt cleanup completed",
		slog.Int64("deleted_attempts", tag.RowsAffected()),
		slog.Time("cutoff", cutoff))
	return tag.RowsAffected(), nil
}

// RunPeriodic runs a cleanup now and then every interval until ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if _, err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
