package jwt

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseRoundTrip(t *testing.T) {
	token, err := GenerateToken(Subject{UserID: "user-1", CompanyID: "co-1", Role: "ADMIN"}, "secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := Parse(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.CompanyID != "co-1" || claims.Role != "ADMIN" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(Subject{UserID: "user-1"}, "secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(token, "other"); !errors.Is(err, jwtlib.ErrTokenSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken(Subject{UserID: "user-1"}, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(token, "secret"); !errors.Is(err, jwtlib.ErrTokenExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}
