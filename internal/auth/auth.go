// Package auth identifies the principal behind a request and manages the
// credentials principals sign in with.
package auth

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// CookieName is the cookie that carries the session token in browsers.
const CookieName = "auth_token"

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrLoginTaken         = errors.New("login is already taken")
	ErrInvalidLogin       = errors.New("login must be 3 to 30 letters, digits, dots, dashes or underscores")
	ErrWeakPassword       = errors.New("password must be 8 to 72 bytes long")
	ErrUnknownPrincipal   = errors.New("unknown principal")
	ErrInvalidToken       = errors.New("invalid session token")
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores anything longer
)

var loginPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)

// Credentials are the stored sign-in details of a principal.
type Credentials struct {
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}

// Store persists credentials.
type Store interface {
	// CreatePrincipal returns ErrLoginTaken if the login exists.
	CreatePrincipal(ctx context.Context, creds *Credentials) error
	// FindCredentials returns ErrUnknownPrincipal if the login does not exist.
	FindCredentials(ctx context.Context, login string) (*Credentials, error)
}

type principalKey struct{}

// ContextWithPrincipal returns a context carrying principal.
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the principal of the request, or "" for
// anonymous requests.
func PrincipalFromContext(ctx context.Context) string {
	principal, _ := ctx.Value(principalKey{}).(string)

	return principal
}

// ValidateLogin checks the shape of a login.
func ValidateLogin(login string) error {
	if !loginPattern.MatchString(login) {
		return ErrInvalidLogin
	}

	return nil
}

// ValidatePassword checks the length of a password.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrWeakPassword
	}

	return nil
}
