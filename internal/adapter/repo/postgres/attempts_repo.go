// Package postgres provides PostgreSQL adapters for the completion attempt
// audit log. Only orchestration telemetry is stored: prompts and response
// bodies never reach the database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AttemptRepo implements domain.AttemptRecorder and domain.AttemptReader.
type AttemptRepo struct{ Pool PgxPool }

// NewAttemptRepo constructs an AttemptRepo with the given pool.
func NewAttemptRepo(p PgxPool) *AttemptRepo { return &AttemptRepo{Pool: p} }

// Record stores one attempt of the chain identified by requestID.
func (r *AttemptRepo) Record(ctx domain.Context, requestID string, a domain.CompletionAttempt) error {
	tracer := otel.Tracer("repo.attempts")
	ctx, span := tracer.Start(ctx, "attempts.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "completion_attempts"),
		attribute.Int("attempt.number", a.Number),
	)
	if requestID == "" {
		requestID = "unknown"
	}
	q := `INSERT INTO completion_attempts
		(id, request_id, attempt_number, reason, model, token_ceiling, http_status, finish_reason, error_kind, error_message, response_bytes, latency_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.Pool.Exec(ctx, q,
		uuid.New().String(), requestID, a.Number, string(a.Reason), a.Model, a.TokenCeiling, a.HTTPStatus,
		string(a.FinishReason), string(a.ErrorKind), a.ErrorMessage, len(a.Text()), a.Latency.Milliseconds(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=attempts.record: %w", err)
	}
	return nil
}

// ListByRequest returns the recorded chain for requestID ordered by attempt number.
func (r *AttemptRepo) ListByRequest(ctx domain.Context, requestID string) ([]domain.CompletionAttempt, error) {
	tracer := otel.Tracer("repo.attempts")
	ctx, span := tracer.Start(ctx, "attempts.ListByRequest")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "completion_attempts"),
	)
	q := `SELECT attempt_number, reason, model, token_ceiling, http_status, finish_reason, error_kind, error_message, latency_ms
		FROM completion_attempts WHERE request_id=$1 ORDER BY attempt_number, created_at`
	rows, err := r.Pool.Query(ctx, q, requestID)
	if err != nil {
		return nil, fmt.Errorf("op=attempts.list: %w", err)
	}
	defer rows.Close()

	var out []domain.CompletionAttempt
	for rows.Next() {
		var (
			a         domain.CompletionAttempt
			reason    string
			finish    string
			kind      string
			status    *int
			latencyMs int64
		)
		if err := rows.Scan(&a.Number, &reason, &a.Model, &a.TokenCeiling, &status, &finish, &kind, &a.ErrorMessage, &latencyMs); err != nil {
			return nil, fmt.Errorf("op=attempts.list_scan: %w", err)
		}
		a.Reason = domain.RetryReason(reason)
		a.FinishReason = domain.FinishReason(finish)
		a.ErrorKind = domain.ErrorKind(kind)
		a.HTTPStatus = status
		a.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=attempts.list_rows: %w", err)
	}
	return out, nil
}
