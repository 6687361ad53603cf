package model

import "time"

// WidgetToken is an opaque bearer credential binding a public caller to one
// bot with domain and expiry constraints. Only the SHA-256 hash of the
// plaintext is ever persisted.
type WidgetToken struct {
	ID             string     `json:"id"`
	BotID          string     `json:"bot_id"`
	TokenHash      string     `json:"-"`
	TokenPrefix    string     `json:"token_prefix,omitempty"`
	AllowedDomains []string   `json:"allowed_domains"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Name           *string    `json:"name,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
