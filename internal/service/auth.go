package service

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService verifies bearer tokens identifying the authenticated user
// principal (bot owners), distinct from widget bearer tokens (C12).
type AuthService struct {
	signingKey []byte
	algorithm  string
}

// NewAuthService creates an AuthService that verifies tokens signed with
// signingKey using the given algorithm (e.g. "HS256").
func NewAuthService(signingKey []byte, algorithm string) *AuthService {
	return &AuthService{signingKey: signingKey, algorithm: algorithm}
}

// VerifyToken validates a bearer token and returns the user id carried in
// its "sub" claim.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("service.AuthService.VerifyToken: token is empty")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.algorithm {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("service.AuthService.VerifyToken: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("service.AuthService.VerifyToken: token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("service.AuthService.VerifyToken: unexpected claims type")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("service.AuthService.VerifyToken: missing sub claim")
	}
	return sub, nil
}
