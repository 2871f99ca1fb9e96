// Package password implements credential hashing and the password policy.
package password

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrTooWeak is returned by Hash when the password fails the length or
	// character-class policy.
	ErrTooWeak = errors.New("password too weak")
	// ErrTooLong is returned by Hash when the password exceeds bcrypt's
	// 72 byte input limit. Inputs are rejected, never truncated.
	ErrTooLong = errors.New("password exceeds 72 bytes")
)

const maxInputBytes = 72

// Config controls the hashing policy.
type Config struct {
	MinLength int
	// RequireClasses demands at least one lowercase letter, one uppercase
	// letter, one digit, and one symbol.
	RequireClasses bool
	// Cost is the bcrypt work factor; 0 selects the library default.
	Cost int
}

// Hasher hashes and verifies passwords under a fixed policy. It is
// stateless and safe for concurrent use.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.MinLength < 1 {
		return nil, errors.New("MinLength must be >= 1")
	}
	if cfg.Cost != 0 && (cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost) {
		return nil, errors.New("Cost outside bcrypt range")
	}
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}
	return &Hasher{config: cfg}, nil
}

// Hash enforces the policy and returns a bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > maxInputBytes {
		return "", ErrTooLong
	}
	if len([]rune(password)) < h.config.MinLength {
		return "", ErrTooWeak
	}
	if h.config.RequireClasses && !hasAllClasses(password) {
		return "", ErrTooWeak
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.config.Cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether password matches the stored hash. A malformed
// stored hash is a plain non-match, not an error.
func (h *Hasher) Verify(password, hash string) bool {
	if len(password) > maxInputBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func hasAllClasses(password string) bool {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}
