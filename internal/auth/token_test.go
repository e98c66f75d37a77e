package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{Subject: "acct-1", Role: RoleAdmin, ExpiresAt: time.Now().Add(time.Hour).Unix()}

	token, err := Sign(claims, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := Verify(token, secret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Subject != claims.Subject || got.Role != claims.Role {
		t.Fatalf("claims mismatch: %+v", got)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Sign(Claims{Subject: "acct-1"}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := Verify(token+"x", secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := Verify(token, []byte("other-secret")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}
	if _, err := Verify("not-a-token", secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for garbage, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Sign(Claims{Subject: "acct-1", ExpiresAt: time.Now().Add(-time.Minute).Unix()}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(token, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
