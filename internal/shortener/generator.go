package shortener

import (
	"fmt"
	"regexp"

	"github.com/jaevor/go-nanoid"
)

const (
	// Alphabet is the set of characters short ids are made of.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// IDLength is the length of generated short ids. Custom ids may be shorter.
	IDLength = 6
)

var shortIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,6}$`)

// CodeGenerator produces candidate short ids. Uniqueness is enforced by the Repository.
type CodeGenerator func() string

// NewGenerator returns a generator of random ids of the given length drawn
// uniformly from Alphabet.
func NewGenerator(length int) (CodeGenerator, error) {
	gen, err := nanoid.CustomASCII(Alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("short id generator: %w", err)
	}

	return gen, nil
}

// ValidShortID reports whether id is 1 to 6 letters or digits.
func ValidShortID(id string) bool {
	return shortIDPattern.MatchString(id)
}
