package main

import (
	"context"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/container"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		container.RegisterConsumer(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if options.RedisAddr == "" {
				logger.Fatal("the standalone consumer needs --redis-addr; without Redis the server consumes clicks itself")
			}

			if _, err := container.StartConsumers(ctx, injector); err != nil {
				logger.Fatal("failed to start consumer group", zap.Error(err))
			}

			logger.Info("consuming click events", zap.String("consumer_group", options.ConsumerGroup))

			<-ctx.Done()
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			cancel()

			if err := injector.Shutdown(); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Run()
}
