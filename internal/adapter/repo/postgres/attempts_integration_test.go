//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

func TestAttemptRepo_Postgres(t *testing.T) {
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: pgReq, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, fmt.Sprintf("postgres://postgres:postgres@%s:%s/app?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))

	repo := postgres.NewAttemptRepo(pool)
	status := 429
	require.NoError(t, repo.Record(ctx, "req-int", domain.CompletionAttempt{
		Number: 1, Reason: domain.RetryNone, TokenCeiling: 1200, HTTPStatus: &status,
		ErrorKind: domain.ErrorKindRateLimited, ErrorMessage: "status 429", Model: "gpt-4o-mini",
	}))
	require.NoError(t, repo.Record(ctx, "req-int", domain.CompletionAttempt{
		Number: 2, Reason: domain.RetryTruncation, TokenCeiling: 1800, ErrorKind: domain.ErrorKindNone,
	}))

	got, err := repo.ListByRequest(ctx, "req-int")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ErrorKindRateLimited, got[0].ErrorKind)
	require.NotNil(t, got[0].HTTPStatus)
	assert.Equal(t, 429, *got[0].HTTPStatus)
	assert.Equal(t, domain.RetryTruncation, got[1].Reason)

	n, err := postgres.NewCleanupService(postgres.PoolBeginner{Pool: pool}, 1).CleanupOldData(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
