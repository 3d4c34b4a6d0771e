package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.GenerateAccessToken(OperatorClaims{Operator: "ops", Role: "admin"})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Operator != "ops" || claims.Role != "admin" {
		t.Errorf("claims = %+v, want ops/admin", claims)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, err := m.GenerateAccessToken(OperatorClaims{Operator: "ops"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ValidateAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("error = %v, want ErrTokenExpired", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	good := NewJWTManager("secret-a", time.Hour)
	bad := NewJWTManager("secret-b", time.Hour)

	token, _ := good.GenerateAccessToken(OperatorClaims{Operator: "ops"})
	if _, err := bad.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenPair(t *testing.T) {
	m := NewJWTManager("test-secret", 30*time.Minute)

	pair, err := m.GenerateTokenPair(OperatorClaims{Operator: "ops"})
	if err != nil {
		t.Fatal(err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("token pair incomplete")
	}
	if pair.ExpiresIn != 1800 {
		t.Errorf("ExpiresIn = %d, want 1800", pair.ExpiresIn)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("TokenType = %s, want Bearer", pair.TokenType)
	}
}

func TestPasswordHashing(t *testing.T) {
	p := NewPasswordManager(4) // low cost keeps the test fast

	hash, err := p.HashPassword("correct horse battery")
	if err != nil {
		t.Fatal(err)
	}
	if !p.VerifyPassword("correct horse battery", hash) {
		t.Error("valid password rejected")
	}
	if p.VerifyPassword("wrong password", hash) {
		t.Error("invalid password accepted")
	}
}

func TestShortPasswordRejected(t *testing.T) {
	p := NewPasswordManager(4)
	if _, err := p.HashPassword("short"); err == nil {
		t.Error("expected error for short password")
	}
}
