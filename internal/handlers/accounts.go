package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/auth"
	"go.uber.org/zap"
)

// Accounts registers and verifies principals.
type Accounts interface {
	Register(ctx context.Context, login, password string) error
	Verify(ctx context.Context, login, password string) (string, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(principal string) (string, time.Time, error)
}

// AccountHandler handles sign-up, sign-in and logout.
type AccountHandler struct {
	accounts     Accounts
	tokens       TokenIssuer
	secureCookie bool
	logger       *zap.Logger
}

// NewAccountHandler creates a new account handler. secureCookie marks the
// session cookie Secure, which browsers only send over https.
func NewAccountHandler(accounts Accounts, tokens TokenIssuer, secureCookie bool, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

func (h *AccountHandler) Signup(ctx context.Context, req *CredentialsRequest) (*SignupResponse, error) {
	err := h.accounts.Register(ctx, req.Body.Login, req.Body.Password)

	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidLogin), errors.Is(err, auth.ErrWeakPassword):
		return nil, huma.Error400BadRequest(err.Error())
	case errors.Is(err, auth.ErrLoginTaken):
		return nil, huma.Error409Conflict(err.Error())
	default:
		h.logger.Error("sign-up failed", zap.Error(err))

		return nil, huma.Error500InternalServerError("internal error")
	}

	resp := &SignupResponse{Status: http.StatusCreated}
	resp.Body.Login = req.Body.Login

	return resp, nil
}

func (h *AccountHandler) Signin(ctx context.Context, req *CredentialsRequest) (*SigninResponse, error) {
	principal, err := h.accounts.Verify(ctx, req.Body.Login, req.Body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, huma.Error401Unauthorized(err.Error())
		}

		h.logger.Error("sign-in failed", zap.Error(err))

		return nil, huma.Error500InternalServerError("internal error")
	}

	token, expiresAt, err := h.tokens.Issue(principal)
	if err != nil {
		h.logger.Error("issue session token", zap.Error(err))

		return nil, huma.Error500InternalServerError("internal error")
	}

	resp := &SigninResponse{SetCookie: h.cookie(token, expiresAt).String()}
	resp.Body.Token = token
	resp.Body.ExpiresAt = expiresAt

	return resp, nil
}

func (h *AccountHandler) Logout(_ context.Context, _ *struct{}) (*LogoutResponse, error) {
	cookie := h.cookie("", time.Unix(0, 0))
	cookie.MaxAge = -1

	return &LogoutResponse{SetCookie: cookie.String()}, nil
}

func (h *AccountHandler) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
