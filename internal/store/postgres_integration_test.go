//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink/internal/migrations"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("shortlink"),
		tcpostgres.WithUsername("shortlink"),
		tcpostgres.WithPassword("shortlink"),
		tcpostgres.WithSQLDriver("pgx"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, migrations.Up(dsn, zap.NewNop()))
	// A second run finds nothing to do.
	require.NoError(t, migrations.Up(dsn, zap.NewNop()))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	return pool
}

func TestPostgresStoreIntegration(t *testing.T) {
	pool := startPostgres(t)

	testRepository(t, func(t *testing.T, _ func() time.Time) linkStore {
		_, err := pool.Exec(context.Background(), "TRUNCATE links, principals RESTART IDENTITY")
		require.NoError(t, err)

		return store.NewPostgresStore(pool)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, store.NewPostgresStore(pool).Ping(context.Background()))
	})
}
