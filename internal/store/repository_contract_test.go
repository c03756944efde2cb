package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkStore interface {
	shortener.Repository
	auth.Store
}

// testRepository exercises the behaviour every link store shares. newStore
// must return an empty store whose "today" is the day of now().
func testRepository(t *testing.T, newStore func(t *testing.T, now func() time.Time) linkStore) {
	t.Helper()

	ctx := context.Background()
	today := time.Now().UTC().Truncate(time.Microsecond)
	now := func() time.Time { return today }

	newLink := func(owner, shortID string, createdAt time.Time) *shortener.Link {
		return &shortener.Link{
			Owner:       owner,
			OriginalURL: "https://example.com/" + shortID,
			ShortID:     shortID,
			CreatedAt:   createdAt,
		}
	}

	t.Run("create and find", func(t *testing.T) {
		s := newStore(t, now)

		created, err := s.Create(ctx, newLink("alice", "abc123", today))
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, int64(0), created.ClickCount)

		got, err := s.FindByShortID(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Owner)
		assert.Equal(t, "https://example.com/abc123", got.OriginalURL)
		assert.True(t, today.Equal(got.CreatedAt))
		assert.Empty(t, got.VisitorIPs)
	})

	t.Run("anonymous owner", func(t *testing.T) {
		s := newStore(t, now)

		_, err := s.Create(ctx, newLink("", "anon1", today))
		require.NoError(t, err)

		got, err := s.FindByShortID(ctx, "anon1")
		require.NoError(t, err)
		assert.Empty(t, got.Owner)
	})

	t.Run("find unknown returns ErrNotFound", func(t *testing.T) {
		s := newStore(t, now)

		_, err := s.FindByShortID(ctx, "nope")

		require.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("duplicate short id returns ErrAlreadyExists", func(t *testing.T) {
		s := newStore(t, now)
		_, err := s.Create(ctx, newLink("alice", "dup", today))
		require.NoError(t, err)

		_, err = s.Create(ctx, newLink("bob", "dup", today))

		require.ErrorIs(t, err, shortener.ErrAlreadyExists)

		got, err := s.FindByShortID(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Owner)
	})

	t.Run("concurrent creates of one short id admit one", func(t *testing.T) {
		s := newStore(t, now)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			inserted int
		)

		for i := range 10 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				if _, err := s.Create(ctx, newLink(fmt.Sprintf("u%d", i), "race", today)); err == nil {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, 1, inserted)
	})

	t.Run("increment click records distinct visitors", func(t *testing.T) {
		s := newStore(t, now)
		_, err := s.Create(ctx, newLink("alice", "clk", today))
		require.NoError(t, err)

		for _, ip := range []string{"10.0.0.2", "10.0.0.1", "10.0.0.2"} {
			_, err := s.IncrementClick(ctx, "clk", ip)
			require.NoError(t, err)
		}

		got, err := s.FindByShortID(ctx, "clk")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.ClickCount)
		assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, got.VisitorIPs)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := newStore(t, now)
		_, err := s.Create(ctx, newLink("alice", "hot", today))
		require.NoError(t, err)

		const clicks = 25

		var wg sync.WaitGroup

		for i := range clicks {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, _ = s.IncrementClick(ctx, "hot", fmt.Sprintf("10.0.1.%d", i%5))
			}()
		}

		wg.Wait()

		got, err := s.FindByShortID(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, int64(clicks), got.ClickCount)
		assert.Len(t, got.VisitorIPs, 5)
	})

	t.Run("increment unknown returns ErrNotFound", func(t *testing.T) {
		s := newStore(t, now)

		_, err := s.IncrementClick(ctx, "nope", "10.0.0.1")

		require.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("add clicks", func(t *testing.T) {
		s := newStore(t, now)
		_, err := s.Create(ctx, newLink("alice", "add", today))
		require.NoError(t, err)

		require.NoError(t, s.AddClicks(ctx, "add", 4))
		require.NoError(t, s.AddClicks(ctx, "add", 0))

		got, err := s.FindByShortID(ctx, "add")
		require.NoError(t, err)
		assert.Equal(t, int64(4), got.ClickCount)
		assert.Empty(t, got.VisitorIPs)

		require.ErrorIs(t, s.AddClicks(ctx, "nope", 1), shortener.ErrNotFound)
	})

	t.Run("count created today ignores other owners and days", func(t *testing.T) {
		s := newStore(t, now)
		yesterday := today.Add(-24 * time.Hour)

		for i, link := range []*shortener.Link{
			newLink("alice", "t1", today),
			newLink("alice", "t2", today),
			newLink("alice", "y1", yesterday),
			newLink("bob", "b1", today),
		} {
			_, err := s.Create(ctx, link)
			require.NoError(t, err, "link %d", i)
		}

		count, err := s.CountCreatedToday(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		count, err = s.CountCreatedToday(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("list by owner is newest first and limited", func(t *testing.T) {
		s := newStore(t, now)

		for i := range 4 {
			_, err := s.Create(ctx, newLink("alice", fmt.Sprintf("l%d", i), today.Add(-time.Duration(4-i)*time.Minute)))
			require.NoError(t, err)
		}

		_, err := s.Create(ctx, newLink("bob", "bob1", today))
		require.NoError(t, err)

		links, err := s.ListByOwner(ctx, "alice", 3)
		require.NoError(t, err)
		require.Len(t, links, 3)
		assert.Equal(t, "l3", links[0].ShortID)
		assert.Equal(t, "l1", links[2].ShortID)
	})

	t.Run("principals", func(t *testing.T) {
		s := newStore(t, now)
		creds := &auth.Credentials{Login: "alice", PasswordHash: "hash", CreatedAt: today}

		require.NoError(t, s.CreatePrincipal(ctx, creds))
		require.ErrorIs(t, s.CreatePrincipal(ctx, creds), auth.ErrLoginTaken)

		got, err := s.FindCredentials(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)

		_, err = s.FindCredentials(ctx, "bob")
		require.ErrorIs(t, err, auth.ErrUnknownPrincipal)
	})
}
