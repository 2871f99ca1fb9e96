package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{MinLength: 8, RequireClasses: true, Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func TestHashVerifyRoundtrip(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("Correct-Horse-9")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !h.Verify("Correct-Horse-9", hash) {
		t.Fatal("expected matching password to verify")
	}
	if h.Verify("Correct-Horse-8", hash) {
		t.Fatal("expected mismatching password to fail")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := newTestHasher(t)

	if _, err := h.Hash("Ab1!"); !errors.Is(err, ErrTooWeak) {
		t.Fatalf("expected ErrTooWeak, got %v", err)
	}
}

func TestHashRejectsMissingClasses(t *testing.T) {
	h := newTestHasher(t)

	cases := []string{
		"alllowercase1!", // no uppercase
		"ALLUPPERCASE1!", // no lowercase
		"NoDigitsHere!!", // no digit
		"NoSymbolsAb12",  // no symbol
	}
	for _, pw := range cases {
		if _, err := h.Hash(pw); !errors.Is(err, ErrTooWeak) {
			t.Fatalf("password %q: expected ErrTooWeak, got %v", pw, err)
		}
	}
}

func TestHashAllowsAnyPasswordWithoutClassRule(t *testing.T) {
	h, err := NewHasher(Config{MinLength: 8, RequireClasses: false, Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if _, err := h.Hash("alllowercase"); err != nil {
		t.Fatalf("Hash: %v", err)
	}
}

func TestHashRejectsOversizedInput(t *testing.T) {
	h := newTestHasher(t)

	long := "Aa1!" + strings.Repeat("x", 69) // 73 bytes
	if _, err := h.Hash(long); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}

	// Exactly at the limit is accepted.
	exact := "Aa1!" + strings.Repeat("x", 68) // 72 bytes
	if _, err := h.Hash(exact); err != nil {
		t.Fatalf("Hash at limit: %v", err)
	}
}

func TestVerifyOversizedInputIsNonMatch(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("Correct-Horse-9")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h.Verify(strings.Repeat("x", 80), hash) {
		t.Fatal("oversized input must not verify")
	}
}

func TestVerifyMalformedHashIsNonMatch(t *testing.T) {
	h := newTestHasher(t)

	if h.Verify("Correct-Horse-9", "not-a-bcrypt-hash") {
		t.Fatal("malformed hash must not verify")
	}
	if h.Verify("Correct-Horse-9", "") {
		t.Fatal("empty hash must not verify")
	}
}

func TestNewHasherRejectsBadConfig(t *testing.T) {
	if _, err := NewHasher(Config{MinLength: 0}); err == nil {
		t.Fatal("expected error for MinLength 0")
	}
	if _, err := NewHasher(Config{MinLength: 8, Cost: 99}); err == nil {
		t.Fatal("expected error for out-of-range cost")
	}
}
