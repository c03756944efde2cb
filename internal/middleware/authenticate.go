package middleware

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/auth"
	"go.uber.org/zap"
)

// TokenParser resolves a session token to its principal.
type TokenParser interface {
	Parse(token string) (string, error)
}

// Authenticate puts the principal of a valid bearer token or auth cookie in
// the request context. Requests without a valid token continue anonymously.
func Authenticate(_ huma.API, tokens TokenParser, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token := sessionToken(ctx)
		if token == "" {
			next(ctx)

			return
		}

		principal, err := tokens.Parse(token)
		if err != nil {
			logger.Debug("ignoring invalid session token", zap.Error(err))
			next(ctx)

			return
		}

		next(huma.WithContext(ctx, auth.ContextWithPrincipal(ctx.Context(), principal)))
	}
}

func sessionToken(ctx huma.Context) string {
	if header := ctx.Header("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	cookies := ctx.Header("Cookie")
	if cookies == "" {
		return ""
	}

	req := http.Request{Header: http.Header{"Cookie": {cookies}}}

	cookie, err := req.Cookie(auth.CookieName)
	if err != nil {
		return ""
	}

	return cookie.Value
}
