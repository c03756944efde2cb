package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS links (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	owner        TEXT NULL,
	original_url TEXT NOT NULL,
	short_id     TEXT NOT NULL UNIQUE,
	created_at   INTEGER NOT NULL,
	click_count  INTEGER NOT NULL DEFAULT 0 CHECK (click_count >= 0)
);
CREATE INDEX IF NOT EXISTS idx_links_owner_created_at ON links (owner, created_at);

CREATE TABLE IF NOT EXISTS link_visitors (
	link_id INTEGER NOT NULL REFERENCES links (id) ON DELETE CASCADE,
	ip      TEXT NOT NULL,
	PRIMARY KEY (link_id, ip)
);

CREATE TABLE IF NOT EXISTS principals (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	login         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
`

// SQLStore is a database/sql implementation of shortener.Repository and
// auth.Store for SQLite and libSQL. Timestamps are stored as unix microseconds.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithSQLClock sets the clock used to find the start of the current day.
func WithSQLClock(now func() time.Time) SQLOption {
	return func(s *SQLStore) {
		s.now = now
	}
}

// OpenSQL opens the database at dsn and creates the schema if needed.
// libsql:// and wss:// URLs use the libSQL driver. Anything else is a SQLite
// path, optionally prefixed with "sqlite:".
func OpenSQL(ctx context.Context, dsn string, opts ...SQLOption) (*SQLStore, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") {
		driver = "libsql"
	} else {
		dsn = strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite:")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	// A single connection serialises writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
		_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	}

	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Close releases the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) FindByShortID(ctx context.Context, shortID string) (*shortener.Link, error) {
	return findLink(ctx, s.db, shortID)
}

func (s *SQLStore) Create(ctx context.Context, link *shortener.Link) (*shortener.Link, error) {
	query := `
		INSERT INTO links (owner, original_url, short_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (short_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		nullableString(link.Owner),
		link.OriginalURL,
		link.ShortID,
		link.CreatedAt.UTC().UnixMicro(),
	)
	if err != nil {
		return nil, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if inserted == 0 {
		return nil, shortener.ErrAlreadyExists
	}

	return findLink(ctx, s.db, link.ShortID)
}

func (s *SQLStore) IncrementClick(ctx context.Context, shortID, visitorIP string) (*shortener.Link, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE links SET click_count = click_count + 1 WHERE short_id = ?`, shortID)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, shortener.ErrNotFound
	}

	if visitorIP != "" {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO link_visitors (link_id, ip)
			SELECT id, ? FROM links WHERE short_id = ?`, visitorIP, shortID)
		if err != nil {
			return nil, err
		}
	}

	link, err := findLink(ctx, tx, shortID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return link, nil
}

func (s *SQLStore) AddClicks(ctx context.Context, shortID string, clicks int64) error {
	if clicks <= 0 {
		return nil
	}

	res, err := s.db.ExecContext(ctx, `UPDATE links SET click_count = click_count + ? WHERE short_id = ?`, clicks, shortID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (s *SQLStore) CountCreatedToday(ctx context.Context, owner string) (int64, error) {
	start := ratelimit.StartOfDay(s.now()).UnixMicro()

	var count int64

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM links WHERE owner = ? AND created_at >= ?`, owner, start,
	).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (s *SQLStore) ListByOwner(ctx context.Context, owner string, limit int) ([]*shortener.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT short_id FROM links
		WHERE owner = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, owner, limit)
	if err != nil {
		return nil, err
	}

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()

			return nil, err
		}

		ids = append(ids, id)
	}

	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, err
	}

	// The pool holds a single connection, so rows must be closed before
	// the visitor lookups below.
	links := make([]*shortener.Link, 0, len(ids))

	for _, id := range ids {
		link, err := findLink(ctx, s.db, id)
		if err != nil {
			return nil, err
		}

		links = append(links, link)
	}

	return links, nil
}

func (s *SQLStore) CreatePrincipal(ctx context.Context, creds *auth.Credentials) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO principals (login, password_hash, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (login) DO NOTHING`,
		creds.Login, creds.PasswordHash, creds.CreatedAt.UTC().UnixMicro(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return auth.ErrLoginTaken
	}

	return nil
}

func (s *SQLStore) FindCredentials(ctx context.Context, login string) (*auth.Credentials, error) {
	var (
		creds     auth.Credentials
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT login, password_hash, created_at FROM principals WHERE login = ?`, login,
	).Scan(&creds.Login, &creds.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUnknownPrincipal
		}

		return nil, err
	}

	creds.CreatedAt = time.UnixMicro(createdAt).UTC()

	return &creds, nil
}

func findLink(ctx context.Context, q queryer, shortID string) (*shortener.Link, error) {
	var (
		link      shortener.Link
		owner     sql.NullString
		createdAt int64
	)

	err := q.QueryRowContext(ctx, `
		SELECT id, owner, original_url, short_id, created_at, click_count
		FROM links WHERE short_id = ?`, shortID,
	).Scan(&link.ID, &owner, &link.OriginalURL, &link.ShortID, &createdAt, &link.ClickCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, fmt.Errorf("scan link: %w", err)
	}

	link.Owner = owner.String
	link.CreatedAt = time.UnixMicro(createdAt).UTC()

	rows, err := q.QueryContext(ctx, `SELECT ip FROM link_visitors WHERE link_id = ? ORDER BY ip`, link.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	link.VisitorIPs = make([]string, 0)

	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}

		link.VisitorIPs = append(link.VisitorIPs, ip)
	}

	return &link, rows.Err()
}

var (
	_ shortener.Repository = (*SQLStore)(nil)
	_ auth.Store           = (*SQLStore)(nil)
)
