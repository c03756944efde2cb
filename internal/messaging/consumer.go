package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

const (
	defaultAttempts = 3
	defaultBackoff  = 100 * time.Millisecond
)

// Consumer subscribes to a topic and processes messages with a typed handler.
// A failing handler is retried with a doubling backoff before the message is nacked.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	attempts   int
	backoff    time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	attempts int
	backoff  time.Duration
}

// WithRetry sets how many times a failing handler runs and the first delay between runs.
func WithRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		c.attempts = max(attempts, 1)
		c.backoff = backoff
	}
}

// NewConsumer creates a new generic consumer for a specific event type.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	cfg := consumerConfig{attempts: defaultAttempts, backoff: defaultBackoff}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger,
		attempts:   cfg.attempts,
		backoff:    cfg.backoff,
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start begins consuming messages from the topic.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		c.cancel()
		c.cancel = nil

		return err
	}

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Error("failed to unmarshal event",
			zap.String("topic", c.topic),
			zap.String("message_id", msg.UUID),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	if err := c.handleWithRetry(ctx, &event); err != nil {
		c.logger.Error("failed to handle event",
			zap.String("topic", c.topic),
			zap.String("message_id", msg.UUID),
			zap.Int("attempts", c.attempts),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	msg.Ack()

	c.logger.Debug("processed event",
		zap.String("topic", c.topic),
		zap.String("message_id", msg.UUID),
	)
}

func (c *Consumer[T]) handleWithRetry(ctx context.Context, event *T) error {
	delay := c.backoff

	var err error

	for attempt := 1; ; attempt++ {
		if err = c.handler(ctx, event); err == nil || attempt >= c.attempts {
			return err
		}

		c.logger.Warn("retrying event",
			zap.String("topic", c.topic),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}

		delay *= 2
	}
}

// Shutdown stops the consumer and waits for in-flight messages to complete.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	return nil
}
