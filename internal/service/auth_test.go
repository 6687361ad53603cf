package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signTestToken(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}

func TestAuthService_VerifyToken_Success(t *testing.T) {
	key := []byte("test-signing-key")
	s := NewAuthService(key, "HS256")

	tok := signTestToken(t, key, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	userID, err := s.VerifyToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("user id = %q, want user-123", userID)
	}
}

func TestAuthService_VerifyToken_WrongKey(t *testing.T) {
	s := NewAuthService([]byte("correct-key"), "HS256")

	tok := signTestToken(t, []byte("wrong-key"), jwt.MapClaims{"sub": "user-123"})

	if _, err := s.VerifyToken(context.Background(), tok); err == nil {
		t.Fatal("expected error for token signed with wrong key")
	}
}

func TestAuthService_VerifyToken_Expired(t *testing.T) {
	key := []byte("test-signing-key")
	s := NewAuthService(key, "HS256")

	tok := signTestToken(t, key, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := s.VerifyToken(context.Background(), tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestAuthService_VerifyToken_MissingSubClaim(t *testing.T) {
	key := []byte("test-signing-key")
	s := NewAuthService(key, "HS256")

	tok := signTestToken(t, key, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	if _, err := s.VerifyToken(context.Background(), tok); err == nil {
		t.Fatal("expected error for token missing sub claim")
	}
}

func TestAuthService_VerifyToken_EmptyString(t *testing.T) {
	s := NewAuthService([]byte("k"), "HS256")

	if _, err := s.VerifyToken(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty token string")
	}
}
