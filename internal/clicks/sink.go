package clicks

import (
	"context"
	"time"

	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// NewSink returns a shortener.ClickSink that publishes a FlushedEvent per flush.
// Caches call sinks outside any request, so publishing uses its own deadline.
func NewSink(publish messaging.Publish[FlushedEvent], logger *zap.Logger) shortener.ClickSink {
	return func(shortID string, clicks int64) {
		if clicks <= 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		event := &FlushedEvent{
			ShortID:   shortID,
			Clicks:    clicks,
			FlushedAt: time.Now().UTC(),
		}

		if err := publish(ctx, event); err != nil {
			logger.Error("failed to publish cached clicks, clicks lost",
				zap.String("short_id", shortID),
				zap.Int64("clicks", clicks),
				zap.Error(err),
			)

			return
		}

		logger.Debug("cached clicks flushed",
			zap.String("short_id", shortID),
			zap.Int64("clicks", clicks),
		)
	}
}
