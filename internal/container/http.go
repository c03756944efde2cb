package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		provider := do.MustInvoke[*auth.Provider](i)
		tokens := do.MustInvoke[*auth.TokenIssuer](i)

		proxies, err := middleware.ParseTrustedProxies(opts.TrustedProxies)
		if err != nil {
			return nil, err
		}

		api := humachi.New(router, huma.DefaultConfig("URL Shortener", "1.0.0"))

		// Middleware has to be in place before routes are registered.
		api.UseMiddleware(middleware.RequestMetaMiddleware(api, proxies))

		if opts.ThrottleRPS > 0 {
			api.UseMiddleware(middleware.Throttle(api, do.MustInvoke[*ratelimit.Throttle](i), logger))
		}

		api.UseMiddleware(middleware.Authenticate(api, tokens, logger))

		handlers.RegisterRoutes(api,
			handlers.NewLinkHandler(do.MustInvoke[*shortener.Service](i), provider, opts.PublicBaseURL(), logger),
			handlers.NewAccountHandler(provider, tokens, opts.SecureCookie, logger),
		)

		health.RegisterRoutes(api, newHealthHandler(i, logger))

		return api, nil
	})
}

func newHealthHandler(i *do.Injector, logger *zap.Logger) *health.Handler {
	h := health.NewHandler(logger)

	if db := do.MustInvoke[*Database](i); db.Health != nil {
		h.Add("database", db.Health)
	}

	if do.MustInvoke[*Options](i).usesRedis() {
		h.Add("redis", health.NewRedisChecker(do.MustInvoke[*Redis](i).Client))
	}

	return h
}
