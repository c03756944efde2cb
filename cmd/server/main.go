package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/container"
	"github.com/serroba/shortlink/internal/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		container.RegisterServer(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var (
			server *http.Server
			cancel context.CancelFunc = func() {}
		)

		hooks.OnStart(func() {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			if _, err := container.StartConsumers(ctx, injector); err != nil {
				logger.Fatal("failed to start click consumers", zap.Error(err))
			}

			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			_ = do.MustInvoke[huma.API](injector)

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("base_url", options.PublicBaseURL()),
				zap.String("database", container.Backend(options.DatabaseURL)),
				zap.Bool("redis", options.RedisAddr != ""),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, stop := context.WithTimeout(context.Background(), 30*time.Second)
			defer stop()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			cancel()
			_ = logger.Sync()

			logger.Info("shutdown complete")
		})
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, options *container.Options) {
			logger, err := container.NewLogger(options.LogFormat, options.LogLevel)
			if err != nil {
				panic(err)
			}

			if err := migrate(options, logger); err != nil {
				logger.Fatal("migration failed", zap.Error(err))
			}

			logger.Info("migrations applied")
		}),
	})

	cli.Run()
}

// migrate brings the schema of the configured database up to date.
// SQLite and libSQL stores create their schema when opened.
func migrate(options *container.Options, logger *zap.Logger) error {
	if container.Backend(options.DatabaseURL) == "postgres" {
		return migrations.Up(options.DatabaseURL, logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := container.OpenDatabase(ctx, options.DatabaseURL, false, logger)
	if err != nil {
		return err
	}

	return db.Shutdown()
}
