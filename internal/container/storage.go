package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/migrations"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Database is the configured link and principal store.
type Database struct {
	Links      shortener.Repository
	Principals auth.Store
	Health     health.Checker // nil for the in-memory store

	close func() error
}

// Shutdown closes the underlying connections.
func (d *Database) Shutdown() error {
	if d.close == nil {
		return nil
	}

	return d.close()
}

// Redis owns the shared Redis client.
type Redis struct {
	Client *redis.Client
}

// Shutdown closes the client.
func (r *Redis) Shutdown() error {
	return r.Client.Close()
}

// RedisPackage provides *Redis. Only invoke it when Options.RedisAddr is set.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.usesRedis() {
			return nil, errors.New("redis address is not configured")
		}

		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()

			return nil, fmt.Errorf("connect to redis at %s: %w", opts.RedisAddr, err)
		}

		return &Redis{Client: client}, nil
	})
}

// DatabasePackage provides *Database, picking the backend from the URL scheme.
func DatabasePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Database, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		db, err := OpenDatabase(ctx, opts.DatabaseURL, opts.AutoMigrate, logger)
		if err != nil {
			return nil, err
		}

		logger.Info("database ready", zap.String("backend", Backend(opts.DatabaseURL)))

		return db, nil
	})
}

// Backend names the store a database URL selects.
func Backend(databaseURL string) string {
	scheme, _, _ := strings.Cut(databaseURL, ":")

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return "postgres"
	case "sqlite", "file":
		return "sqlite"
	case "libsql", "wss":
		return "libsql"
	case "memory":
		return "memory"
	default:
		return ""
	}
}

// OpenDatabase connects to databaseURL. Postgres schemas are migrated first when migrate is set.
func OpenDatabase(ctx context.Context, databaseURL string, migrate bool, logger *zap.Logger) (*Database, error) {
	switch Backend(databaseURL) {
	case "postgres":
		if migrate {
			if err := migrations.Up(databaseURL, logger); err != nil {
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}

		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		pg := store.NewPostgresStore(pool)

		return &Database{
			Links:      pg,
			Principals: pg,
			Health:     pg,
			close: func() error {
				pool.Close()

				return nil
			},
		}, nil
	case "sqlite", "libsql":
		sqlStore, err := store.OpenSQL(ctx, databaseURL)
		if err != nil {
			return nil, err
		}

		return &Database{Links: sqlStore, Principals: sqlStore, Health: sqlStore, close: sqlStore.Close}, nil
	case "memory":
		mem := store.NewMemoryStore()

		return &Database{Links: mem, Principals: mem}, nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", databaseURL)
	}
}
