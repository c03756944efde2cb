package messaging

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// NewInProcess returns a pub/sub that delivers messages within the process.
// The same value serves as both publisher and subscriber.
func NewInProcess(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
}

// NewRedisStreamPublisher publishes messages to Redis streams.
func NewRedisStreamPublisher(client redis.UniversalClient, logger watermill.LoggerAdapter) (message.Publisher, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client:     client,
		Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}

	return publisher, nil
}

// NewRedisStreamSubscriber reads Redis streams as a member of consumerGroup,
// so each message is handled by one consumer process.
func NewRedisStreamSubscriber(
	client redis.UniversalClient,
	consumerGroup string,
	logger watermill.LoggerAdapter,
) (message.Subscriber, error) {
	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: consumerGroup,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}

	return subscriber, nil
}
