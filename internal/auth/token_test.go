package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("test-secret")

func TestIssueAndParseRoundTrip(t *testing.T) {
	token, err := IssueAccessToken(secret, "usr_1", "Avery", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := ParseAccessToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "usr_1" {
		t.Errorf("sub = %q, want usr_1", claims.Subject)
	}
	if claims.Name != "Avery" {
		t.Errorf("name = %q, want Avery", claims.Name)
	}
	if claims.ID != "jti-1" {
		t.Errorf("jti = %q, want jti-1", claims.ID)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := IssueAccessToken(secret, "usr_1", "Avery", "jti-1", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseAccessToken(secret, token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := IssueAccessToken([]byte("other-secret"), "usr_1", "Avery", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseAccessToken(secret, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ParseAccessToken(secret, "definitely.not.a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	now := time.Now()
	claims := Claims{
		Name: "Avery",
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_1",
			ID:        "jti-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(secret, signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for typ=refresh, got %v", err)
	}
}

func TestHashTokenIsStableAndOpaque(t *testing.T) {
	raw, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(raw))
	}
	if HashToken(raw) != HashToken(raw) {
		t.Fatalf("hash must be deterministic")
	}
	if HashToken(raw) == raw {
		t.Fatalf("hash must differ from the raw token")
	}
}
