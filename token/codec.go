// Package token implements the stateless token codec: issuing and verifying
// signed JWTs carrying the claims the engine relies on. The codec never
// consults shared state; revocation is the engine's job.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates access tokens from refresh tokens.
type Type string

const (
	// TypeAccess marks short-lived tokens presented on every request.
	TypeAccess Type = "access"
	// TypeRefresh marks long-lived tokens presented only at the refresh
	// endpoint.
	TypeRefresh Type = "refresh"
)

const (
	// AlgRS256 selects RSA with SHA-256.
	AlgRS256 = "rs256"
	// AlgEd25519 selects EdDSA over Curve25519.
	AlgEd25519 = "ed25519"
)

// ErrMalformedClaims is returned when a structurally valid token is missing
// required claims.
var ErrMalformedClaims = errors.New("malformed token claims")

// Config carries the signing algorithm and key material for a Codec.
//
// Inline PEM bytes take precedence over file paths. Paths are read exactly
// once, in NewCodec; a failure there is meant to abort startup.
type Config struct {
	Algorithm      string
	PrivateKeyPEM  []byte
	PublicKeyPEM   []byte
	PrivateKeyPath string
	PublicKeyPath  string
}

// Claims is the decoded view of a token the engine works with.
type Claims struct {
	Subject    string
	Type       Type
	RotationID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

type wireClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a fixed algorithm and key pair.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	now       func() time.Time
}

// NewCodec parses the configured key material and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	privPEM, err := keyMaterial(cfg.PrivateKeyPEM, cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	pubPEM, err := keyMaterial(cfg.PublicKeyPEM, cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}

	c := &Codec{now: time.Now}

	switch cfg.Algorithm {
	case "", AlgRS256:
		c.method = jwt.SigningMethodRS256
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
		if err != nil {
			return nil, fmt.Errorf("parse rsa private key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
		if err != nil {
			return nil, fmt.Errorf("parse rsa public key: %w", err)
		}
		c.signKey = priv
		c.verifyKey = pub
	case AlgEd25519:
		c.method = jwt.SigningMethodEdDSA
		priv, err := parseEdPrivateKey(privPEM)
		if err != nil {
			return nil, err
		}
		pub, err := parseEdPublicKey(pubPEM)
		if err != nil {
			return nil, err
		}
		c.signKey = priv
		c.verifyKey = pub
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return c, nil
}

func keyMaterial(inline []byte, path string) ([]byte, error) {
	if len(inline) > 0 {
		return inline, nil
	}
	if path == "" {
		return nil, errors.New("no key material configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Issue signs a token of the given type for subject, expiring after ttl.
// Refresh tokens must carry a rotation id; access tokens must not.
func (c *Codec) Issue(subject string, typ Type, ttl time.Duration, rotationID string) (string, error) {
	if subject == "" {
		return "", errors.New("subject required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be > 0")
	}
	switch typ {
	case TypeAccess:
		if rotationID != "" {
			return "", errors.New("access tokens carry no rotation id")
		}
	case TypeRefresh:
		if rotationID == "" {
			return "", errors.New("refresh tokens require a rotation id")
		}
	default:
		return "", fmt.Errorf("unknown token type %q", typ)
	}

	now := c.now()
	claims := wireClaims{
		Type: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        rotationID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
}

// Verify parses and validates a token string. Signature, expiry, and
// issued-at are all checked; revocation state is not.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &wireClaims{}, func(t *jwt.Token) (any, error) {
		return c.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}

	wc, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if wc.Subject == "" || wc.IssuedAt == nil || wc.ExpiresAt == nil {
		return nil, ErrMalformedClaims
	}
	typ := Type(wc.Type)
	if typ != TypeAccess && typ != TypeRefresh {
		return nil, ErrMalformedClaims
	}

	return &Claims{
		Subject:    wc.Subject,
		Type:       typ,
		RotationID: wc.ID,
		IssuedAt:   wc.IssuedAt.Time,
		ExpiresAt:  wc.ExpiresAt.Time,
	}, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
