package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/model"
)

const widgetTokenBytes = 64

// WidgetTokenStore abstracts widget token persistence.
type WidgetTokenStore interface {
	Create(ctx context.Context, t *model.WidgetToken) error
	GetByHash(ctx context.Context, hash string) (*model.WidgetToken, error)
	TouchLastUsed(ctx context.Context, id string) error
	Delete(ctx context.Context, botID, id string) error
}

// WidgetTokenService implements the C12 issue/validate/revoke contract.
type WidgetTokenService struct {
	store WidgetTokenStore
}

// NewWidgetTokenService creates a WidgetTokenService.
func NewWidgetTokenService(store WidgetTokenStore) *WidgetTokenService {
	return &WidgetTokenService{store: store}
}

// Issue generates a new widget token and returns its plaintext exactly once;
// only the SHA-256 hash is persisted.
func (s *WidgetTokenService) Issue(ctx context.Context, botID string, allowedDomains []string, expiresAt *time.Time, name *string) (plaintext string, token *model.WidgetToken, err error) {
	raw := make([]byte, widgetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("service.WidgetTokenService.Issue: %w", err)
	}
	plaintext = base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw)
	hash := hashToken(plaintext)

	t := &model.WidgetToken{
		BotID:          botID,
		TokenHash:      hash,
		TokenPrefix:    plaintext[:8],
		AllowedDomains: normalizeDomains(allowedDomains),
		ExpiresAt:      expiresAt,
		Name:           name,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", nil, fmt.Errorf("service.WidgetTokenService.Issue: %w", err)
	}
	return plaintext, t, nil
}

// Validate resolves a presented bearer token to its bot id, enforcing
// expiry and an exact-host, case-insensitive match against allowed_domains
// for the caller's Origin or Referer.
func (s *WidgetTokenService) Validate(ctx context.Context, plaintext, originOrReferer string) (botID string, err error) {
	t, err := s.store.GetByHash(ctx, hashToken(plaintext))
	if err != nil {
		return "", err
	}

	if t.ExpiresAt != nil && !time.Now().UTC().Before(*t.ExpiresAt) {
		return "", apperr.New(apperr.Expired, "widget token expired")
	}

	if !hostAllowed(originOrReferer, t.AllowedDomains) {
		return "", apperr.New(apperr.DomainNotAllowed, "request origin not in allowed_domains")
	}

	if err := s.store.TouchLastUsed(ctx, t.ID); err != nil {
		slog.Warn("service.WidgetTokenService.Validate: failed to touch last_used_at", "token_id", t.ID, "error", err)
	}

	return t.BotID, nil
}

// Revoke deletes a widget token; the caller is responsible for having
// already verified ownership of botID.
func (s *WidgetTokenService) Revoke(ctx context.Context, botID, tokenID string) error {
	if err := s.store.Delete(ctx, botID, tokenID); err != nil {
		return fmt.Errorf("service.WidgetTokenService.Revoke: %w", err)
	}
	return nil
}

func hashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func normalizeDomains(domains []string) []string {
	out := make([]string, len(domains))
	for i, d := range domains {
		out[i] = strings.ToLower(strings.TrimSpace(d))
	}
	return out
}

func hostAllowed(originOrReferer string, allowedDomains []string) bool {
	if originOrReferer == "" {
		return false
	}
	host := originOrReferer
	if u, err := url.Parse(originOrReferer); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)

	for _, allowed := range allowedDomains {
		if host == allowed {
			return true
		}
	}
	return false
}
