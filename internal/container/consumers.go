package container

import (
	"context"

	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/messaging"
)

// StartConsumers starts the click consumers.
//
// Call it before invoking the HTTP stack: the injector shuts services down in
// reverse invocation order, and the redirect cache must flush its clicks while
// the publisher and the consumers are still running.
func StartConsumers(ctx context.Context, injector *do.Injector) (*messaging.ConsumerGroup, error) {
	if _, err := do.Invoke[*messaging.PublisherGroup](injector); err != nil {
		return nil, err
	}

	group, err := do.Invoke[*messaging.ConsumerGroup](injector)
	if err != nil {
		return nil, err
	}

	if err := group.Start(ctx); err != nil {
		return nil, err
	}

	return group, nil
}

// RegisterServer registers every package the HTTP server needs.
func RegisterServer(injector *do.Injector, options *Options) {
	do.ProvideValue(injector, options)
	LoggerPackage(injector)
	RedisPackage(injector)
	DatabasePackage(injector)
	MessagingPackage(injector)
	ConsumerGroupPackage(injector)
	CachePackage(injector)
	RateLimitPackage(injector)
	AuthPackage(injector)
	ServicePackage(injector)
	HTTPPackage(injector)
}

// RegisterConsumer registers the packages of the standalone click consumer.
func RegisterConsumer(injector *do.Injector, options *Options) {
	do.ProvideValue(injector, options)
	LoggerPackage(injector)
	RedisPackage(injector)
	DatabasePackage(injector)
	MessagingPackage(injector)
	ConsumerGroupPackage(injector)
}
