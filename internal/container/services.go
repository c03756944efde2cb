package container

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/clicks"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const sweepInterval = time.Minute

// MessagingPackage provides the click event publisher and subscriber: Redis
// streams when Redis is configured, otherwise one in-process channel.
func MessagingPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		return messaging.NewInProcess(messaging.NewZapLogger(logger)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if !opts.usesRedis() {
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		}

		publisher, err := messaging.NewRedisStreamPublisher(
			do.MustInvoke[*Redis](i).Client,
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (message.Subscriber, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if !opts.usesRedis() {
			return do.MustInvoke[*gochannel.GoChannel](i), nil
		}

		return messaging.NewRedisStreamSubscriber(
			do.MustInvoke[*Redis](i).Client,
			opts.ConsumerGroup,
			messaging.NewZapLogger(logger),
		)
	})
}

// ConsumerGroupPackage provides the consumers that apply flushed clicks to the database.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		db := do.MustInvoke[*Database](i)
		subscriber := do.MustInvoke[message.Subscriber](i)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(clicks.NewConsumer(subscriber, db.Links, logger))

		return group, nil
	})
}

// CachePackage provides the redirect cache. Clicks counted by the cache are
// published as events when entries leave it.
func CachePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (shortener.Cache, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		publishers := do.MustInvoke[*messaging.PublisherGroup](i)

		sink := clicks.NewSink(
			messaging.NewPublishFunc[clicks.FlushedEvent](publishers.Publisher(), clicks.TopicFlushed),
			logger,
		)

		if opts.usesRedis() {
			return store.NewRedisCache(do.MustInvoke[*Redis](i).Client, opts.cacheTTL(), sink), nil
		}

		return store.NewMemoryCache(opts.cacheTTL(), sink), nil
	})
}

// RateLimitPackage provides the daily quota limiter and the burst throttle.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Store, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.usesRedis() {
			return store.NewRateLimitRedisStore(do.MustInvoke[*Redis](i).Client), nil
		}

		windows := store.NewRateLimitMemoryStore()
		windows.StartSweeper(sweepInterval)

		return windows, nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.DailyLimiter, error) {
		opts := do.MustInvoke[*Options](i)

		policy := ratelimit.NewPolicyBuilder().
			AddLimit(ratelimit.ScopeCreation, opts.CreationLimit).
			AddLimit(ratelimit.ScopeRedirect, opts.RedirectLimit).
			Build()

		return ratelimit.NewDailyLimiter(do.MustInvoke[ratelimit.Store](i), policy), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.Throttle, error) {
		opts := do.MustInvoke[*Options](i)

		throttle := ratelimit.NewThrottle(float64(opts.ThrottleRPS), opts.ThrottleBurst)
		throttle.StartSweeper(sweepInterval)

		return throttle, nil
	})
}

// AuthPackage provides the account provider and the session token issuer.
func AuthPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*auth.Provider, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		db := do.MustInvoke[*Database](i)

		return auth.NewProvider(db.Principals, auth.NewBcryptHasher(bcrypt.DefaultCost), logger)
	})

	do.Provide(injector, func(i *do.Injector) (*auth.TokenIssuer, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return auth.NewTokenIssuer(opts.JWTSecret, opts.tokenTTL(), logger)
	})
}

// ServicePackage provides the link service.
func ServicePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*shortener.Service, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		generate, err := shortener.NewGenerator(shortener.IDLength)
		if err != nil {
			return nil, err
		}

		return shortener.NewService(
			do.MustInvoke[*Database](i).Links,
			do.MustInvoke[shortener.Cache](i),
			do.MustInvoke[*ratelimit.DailyLimiter](i),
			generate,
			logger,
			shortener.WithCreationLimit(opts.CreationLimit),
			shortener.WithReservedIDs(handlers.ReservedShortIDs...),
		), nil
	})
}
