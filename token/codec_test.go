package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func edKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	privPEM, pubPEM := edKeyPair(t)
	c, err := NewCodec(Config{
		Algorithm:     AlgEd25519,
		PrivateKeyPEM: privPEM,
		PublicKeyPEM:  pubPEM,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestIssueVerifyAccess(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.Issue("user-1", TypeAccess, 15*time.Minute, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := c.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Type != TypeAccess {
		t.Fatalf("type = %q, want access", claims.Type)
	}
	if claims.RotationID != "" {
		t.Fatalf("access token carries rotation id %q", claims.RotationID)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Fatal("expiry must be after issued-at")
	}
}

func TestIssueVerifyRefresh(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.Issue("user-1", TypeRefresh, 7*24*time.Hour, "rot-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := c.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Type != TypeRefresh {
		t.Fatalf("type = %q, want refresh", claims.Type)
	}
	if claims.RotationID != "rot-1" {
		t.Fatalf("rotation id = %q, want rot-1", claims.RotationID)
	}
}

func TestIssueRules(t *testing.T) {
	c := newTestCodec(t)

	if _, err := c.Issue("", TypeAccess, time.Minute, ""); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, err := c.Issue("user-1", TypeAccess, 0, ""); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
	if _, err := c.Issue("user-1", TypeAccess, time.Minute, "rot-1"); err == nil {
		t.Fatal("expected error for access token with rotation id")
	}
	if _, err := c.Issue("user-1", TypeRefresh, time.Minute, ""); err == nil {
		t.Fatal("expected error for refresh token without rotation id")
	}
	if _, err := c.Issue("user-1", Type("session"), time.Minute, ""); err == nil {
		t.Fatal("expected error for unknown token type")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.Issue("user-1", TypeAccess, time.Minute, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := c.Verify(raw); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	c := newTestCodec(t)

	raw, err := c.Issue("user-1", TypeAccess, time.Minute, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := raw[:len(raw)-4] + "AAAA"
	if _, err := c.Verify(tampered); err == nil {
		t.Fatal("expected tampered token to fail verification")
	}
	if _, err := c.Verify("not.a.jwt"); err == nil {
		t.Fatal("expected garbage to fail verification")
	}
}

func TestVerifyWrongKey(t *testing.T) {
	a := newTestCodec(t)
	b := newTestCodec(t)

	raw, err := a.Issue("user-1", TypeAccess, time.Minute, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(raw); err == nil {
		t.Fatal("expected token signed by another key to fail")
	}
}

func TestRS256Roundtrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	c, err := NewCodec(Config{
		Algorithm:     AlgRS256,
		PrivateKeyPEM: privPEM,
		PublicKeyPEM:  pubPEM,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	raw, err := c.Issue("user-1", TypeRefresh, time.Hour, "rot-9")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := c.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.RotationID != "rot-9" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestNewCodecFromFiles(t *testing.T) {
	privPEM, pubPEM := edKeyPair(t)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "priv.pem")
	pubPath := filepath.Join(dir, "pub.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	c, err := NewCodec(Config{
		Algorithm:      AlgEd25519,
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := c.Issue("user-1", TypeAccess, time.Minute, ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
}

func TestNewCodecFailures(t *testing.T) {
	privPEM, pubPEM := edKeyPair(t)

	if _, err := NewCodec(Config{Algorithm: AlgEd25519}); err == nil {
		t.Fatal("expected error for missing key material")
	}
	if _, err := NewCodec(Config{
		Algorithm:     AlgEd25519,
		PrivateKeyPEM: privPEM,
		PublicKeyPath: "/nonexistent/pub.pem",
	}); err == nil {
		t.Fatal("expected error for unreadable key file")
	}
	if _, err := NewCodec(Config{
		Algorithm:     "hs256",
		PrivateKeyPEM: privPEM,
		PublicKeyPEM:  pubPEM,
	}); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	if _, err := NewCodec(Config{
		Algorithm:     AlgRS256,
		PrivateKeyPEM: privPEM, // ed25519 material under rs256
		PublicKeyPEM:  pubPEM,
	}); err == nil {
		t.Fatal("expected error for mismatched key material")
	}
}
