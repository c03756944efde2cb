package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/shortener"
)

// PostgresStore is a PostgreSQL implementation of shortener.Repository and auth.Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const linkColumns = `id, COALESCE(owner, ''), original_url, short_id, created_at, click_count, visitor_ips`

func (p *PostgresStore) FindByShortID(ctx context.Context, shortID string) (*shortener.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_id = $1`

	return p.scanLink(p.pool.QueryRow(ctx, query, shortID))
}

func (p *PostgresStore) Create(ctx context.Context, link *shortener.Link) (*shortener.Link, error) {
	query := `
		INSERT INTO links (owner, original_url, short_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (short_id) DO NOTHING
		RETURNING ` + linkColumns

	created, err := p.scanLink(p.pool.QueryRow(ctx, query,
		nullableString(link.Owner),
		link.OriginalURL,
		link.ShortID,
		link.CreatedAt,
	))
	if errors.Is(err, shortener.ErrNotFound) {
		return nil, shortener.ErrAlreadyExists
	}

	return created, err
}

func (p *PostgresStore) IncrementClick(ctx context.Context, shortID, visitorIP string) (*shortener.Link, error) {
	query := `
		UPDATE links
		SET click_count = click_count + 1,
		    visitor_ips = CASE
		        WHEN $2::text = '' OR $2::text = ANY(visitor_ips) THEN visitor_ips
		        ELSE array_append(visitor_ips, $2::text)
		    END
		WHERE short_id = $1
		RETURNING ` + linkColumns

	return p.scanLink(p.pool.QueryRow(ctx, query, shortID, visitorIP))
}

func (p *PostgresStore) AddClicks(ctx context.Context, shortID string, clicks int64) error {
	if clicks <= 0 {
		return nil
	}

	tag, err := p.pool.Exec(ctx, `UPDATE links SET click_count = click_count + $2 WHERE short_id = $1`, shortID, clicks)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) CountCreatedToday(ctx context.Context, owner string) (int64, error) {
	query := `
		SELECT count(*)
		FROM links
		WHERE owner = $1
		  AND created_at >= date_trunc('day', now() AT TIME ZONE 'UTC') AT TIME ZONE 'UTC'
	`

	var count int64
	if err := p.pool.QueryRow(ctx, query, owner).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (p *PostgresStore) ListByOwner(ctx context.Context, owner string, limit int) ([]*shortener.Link, error) {
	query := `SELECT ` + linkColumns + `
		FROM links
		WHERE owner = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := p.pool.Query(ctx, query, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]*shortener.Link, 0)

	for rows.Next() {
		link, err := p.scanLink(rows)
		if err != nil {
			return nil, err
		}

		links = append(links, link)
	}

	return links, rows.Err()
}

func (p *PostgresStore) CreatePrincipal(ctx context.Context, creds *auth.Credentials) error {
	query := `
		INSERT INTO principals (login, password_hash, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (login) DO NOTHING
	`

	tag, err := p.pool.Exec(ctx, query, creds.Login, creds.PasswordHash, creds.CreatedAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrLoginTaken
	}

	return nil
}

func (p *PostgresStore) FindCredentials(ctx context.Context, login string) (*auth.Credentials, error) {
	query := `SELECT login, password_hash, created_at FROM principals WHERE login = $1`

	var creds auth.Credentials

	err := p.pool.QueryRow(ctx, query, login).Scan(&creds.Login, &creds.PasswordHash, &creds.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnknownPrincipal
		}

		return nil, err
	}

	return &creds, nil
}

// Ping reports whether the database is reachable.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) scanLink(row pgx.Row) (*shortener.Link, error) {
	var link shortener.Link

	err := row.Scan(
		&link.ID,
		&link.Owner,
		&link.OriginalURL,
		&link.ShortID,
		&link.CreatedAt,
		&link.ClickCount,
		&link.VisitorIPs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, fmt.Errorf("scan link: %w", err)
	}

	link.CreatedAt = link.CreatedAt.UTC()

	return &link, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

var (
	_ shortener.Repository = (*PostgresStore)(nil)
	_ auth.Store           = (*PostgresStore)(nil)
)
