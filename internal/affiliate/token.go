package affiliate

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// minTokenLength keeps tokens above 128 bits of entropy (22 * log2(62) ~ 131).
const minTokenLength = 22

// NewTokenGenerator returns a base62 token generator backed by crypto/rand.
func NewTokenGenerator(length int) (func() string, error) {
	if length < minTokenLength {
		length = minTokenLength
	}
	gen, err := nanoid.CustomASCII(base62, length)
	if err != nil {
		return nil, fmt.Errorf("token generator: %w", err)
	}
	return gen, nil
}
