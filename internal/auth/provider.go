package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider registers principals and checks their passwords.
type Provider struct {
	store  Store
	hasher Hasher
	logger *zap.Logger
	now    func() time.Time

	dummyHash string // compared against for unknown logins
}

// NewProvider creates a Provider over store.
func NewProvider(store Store, hasher Hasher, logger *zap.Logger) (*Provider, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}

	return &Provider{
		store:     store,
		hasher:    hasher,
		logger:    logger,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// CurrentPrincipal returns the authenticated principal of ctx, or "" if anonymous.
func (p *Provider) CurrentPrincipal(ctx context.Context) string {
	return PrincipalFromContext(ctx)
}

// Register creates a principal with the given password.
func (p *Provider) Register(ctx context.Context, login, password string) error {
	if err := ValidateLogin(login); err != nil {
		return err
	}

	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := p.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = p.store.CreatePrincipal(ctx, &Credentials{
		Login:        login,
		PasswordHash: hash,
		CreatedAt:    p.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrLoginTaken) {
			return err
		}

		return fmt.Errorf("create principal: %w", err)
	}

	p.logger.Info("principal registered", zap.String("principal", login))

	return nil
}

// Verify checks password against the stored credentials of login and returns
// the authenticated principal.
func (p *Provider) Verify(ctx context.Context, login, password string) (string, error) {
	creds, err := p.store.FindCredentials(ctx, login)
	if err != nil {
		if !errors.Is(err, ErrUnknownPrincipal) {
			return "", fmt.Errorf("find credentials: %w", err)
		}

		_ = p.hasher.Compare(p.dummyHash, password)

		return "", ErrInvalidCredentials
	}

	if err := p.hasher.Compare(creds.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			p.logger.Info("sign-in rejected", zap.String("principal", login))

			return "", err
		}

		return "", fmt.Errorf("compare password: %w", err)
	}

	return creds.Login, nil
}
