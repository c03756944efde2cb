package shortener_test

import (
	"strings"
	"testing"

	"github.com/serroba/shortlink/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	t.Run("produces ids of the requested length from the alphabet", func(t *testing.T) {
		gen, err := shortener.NewGenerator(shortener.IDLength)
		require.NoError(t, err)

		for range 100 {
			id := gen()

			require.Len(t, id, shortener.IDLength)

			for _, c := range id {
				assert.True(t, strings.ContainsRune(shortener.Alphabet, c), "unexpected character %q", c)
			}
		}
	})

	t.Run("produces different ids", func(t *testing.T) {
		gen, err := shortener.NewGenerator(shortener.IDLength)
		require.NoError(t, err)

		seen := make(map[string]struct{})
		for range 1000 {
			seen[gen()] = struct{}{}
		}

		assert.Greater(t, len(seen), 990)
	})
}

func TestValidShortID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{id: "a", valid: true},
		{id: "Ab3xY9", valid: true},
		{id: "promo", valid: true},
		{id: "", valid: false},
		{id: "abcdefg", valid: false},
		{id: "ab-cd", valid: false},
		{id: "ab_cd", valid: false},
		{id: "café", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.valid, shortener.ValidShortID(tt.id))
		})
	}
}
