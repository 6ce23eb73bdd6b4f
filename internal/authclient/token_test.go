package authclient

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})

	got, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("expiry: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expiry = %v, want %v", got, exp)
	}
}

func TestTokenExpiryMissingClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "u1"})

	_, err := TokenExpiry(token)
	if !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("err = %v, want ErrNoExpiry", err)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	fresh := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	stale := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})

	if TokenExpired(fresh, now) {
		t.Fatal("fresh token reported expired")
	}
	if !TokenExpired(stale, now) {
		t.Fatal("stale token reported valid")
	}
}

func TestMalformedTokenTreatedAsExpired(t *testing.T) {
	if !TokenExpired("not-a-jwt", time.Now()) {
		t.Fatal("malformed token reported valid")
	}
	if !TokenExpired("", time.Now()) {
		t.Fatal("empty token reported valid")
	}
}
