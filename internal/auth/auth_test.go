package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := CheckPassword(hash, "password1")
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	ok, err = CheckPassword(hash, "password2")
	if err != nil {
		t.Fatalf("mismatch should not be an error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestSignerMintVerify(t *testing.T) {
	s := NewSigner("secret")
	now := time.Now()

	a, err := s.Mint("a@x", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	b, err := s.Mint("a@x", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens for the same email")
	}

	email, err := s.Verify(a)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if email != "a@x" {
		t.Fatalf("unexpected subject: %q", email)
	}
}

func TestSignerVerifyIgnoresExpiry(t *testing.T) {
	s := NewSigner("secret")
	past := time.Now().Add(-48 * time.Hour)
	tok, err := s.Mint("a@x", past, past.Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("expired signature should still verify: %v", err)
	}
}

func TestSignerRejectsForeignSecret(t *testing.T) {
	tok, err := NewSigner("one").Mint("a@x", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := NewSigner("two").Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := NewSigner("one").Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
