package clicks

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Recorder adds clicks to the authoritative count of a link.
type Recorder interface {
	AddClicks(ctx context.Context, shortID string, clicks int64) error
}

// NewHandler returns a handler that applies flushed clicks to recorder.
// Clicks for links that no longer exist are dropped.
func NewHandler(recorder Recorder, logger *zap.Logger) messaging.Handler[FlushedEvent] {
	return func(ctx context.Context, event *FlushedEvent) error {
		err := recorder.AddClicks(ctx, event.ShortID, event.Clicks)
		if errors.Is(err, shortener.ErrNotFound) {
			logger.Warn("dropping clicks for unknown link",
				zap.String("short_id", event.ShortID),
				zap.Int64("clicks", event.Clicks),
			)

			return nil
		}

		if err != nil {
			return fmt.Errorf("add %d clicks to %s: %w", event.Clicks, event.ShortID, err)
		}

		logger.Debug("cached clicks recorded",
			zap.String("short_id", event.ShortID),
			zap.Int64("clicks", event.Clicks),
		)

		return nil
	}
}

// NewConsumer subscribes the click handler to TopicFlushed.
func NewConsumer(subscriber message.Subscriber, recorder Recorder, logger *zap.Logger) *messaging.Consumer[FlushedEvent] {
	return messaging.NewConsumer(subscriber, TopicFlushed, NewHandler(recorder, logger), logger)
}
