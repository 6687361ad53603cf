package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/singlebitxyz/gulp/internal/middleware"
	"github.com/singlebitxyz/gulp/internal/model"
	"github.com/singlebitxyz/gulp/internal/service"
)

// WidgetTokenDeps bundles dependencies for the widget token handlers.
type WidgetTokenDeps struct {
	Access *service.AccessService
	Tokens WidgetTokenLister
	Issuer *service.WidgetTokenService
}

// WidgetTokenLister lists widget tokens scoped to a bot; token issuance and
// revocation go through service.WidgetTokenService instead, so the
// plaintext/hash boundary is enforced in exactly one place.
type WidgetTokenLister interface {
	ListByBot(ctx context.Context, botID string) ([]*model.WidgetToken, error)
}

// CreateWidgetTokenRequest is the POST /bots/{id}/widget-tokens request body.
type CreateWidgetTokenRequest struct {
	AllowedDomains []string   `json:"allowed_domains"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Name           *string    `json:"name,omitempty"`
}

// CreateWidgetTokenResponse carries the plaintext token exactly once; its
// fields are promoted into the JSON object alongside model.WidgetToken's.
type CreateWidgetTokenResponse struct {
	Token string `json:"token"`
	model.WidgetToken
}

// CreateWidgetToken handles POST /api/v1/bots/{id}/widget-tokens.
func CreateWidgetToken(deps WidgetTokenDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}
		if _, err := deps.Access.RequireOwner(r.Context(), botID, userID); err != nil {
			writeErr(w, err)
			return
		}

		var req CreateWidgetTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		if len(req.AllowedDomains) == 0 {
			writeBadRequest(w, "allowed_domains must contain at least one domain")
			return
		}

		plaintext, token, err := deps.Issuer.Issue(r.Context(), botID, req.AllowedDomains, req.ExpiresAt, req.Name)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, CreateWidgetTokenResponse{Token: plaintext, WidgetToken: *token})
	}
}

// ListWidgetTokens handles GET /api/v1/bots/{id}/widget-tokens. Plaintext is
// never returned; model.WidgetToken.TokenHash is already json:"-".
func ListWidgetTokens(deps WidgetTokenDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}
		if _, err := deps.Access.RequireOwner(r.Context(), botID, userID); err != nil {
			writeErr(w, err)
			return
		}

		tokens, err := deps.Tokens.ListByBot(r.Context(), botID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, tokens)
	}
}

// RevokeWidgetToken handles DELETE /api/v1/bots/{id}/widget-tokens/{tid}.
func RevokeWidgetToken(deps WidgetTokenDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}
		tokenID := chi.URLParam(r, "tid")
		if !requireValidID(w, tokenID, "tid") {
			return
		}
		if _, err := deps.Access.RequireOwner(r.Context(), botID, userID); err != nil {
			writeErr(w, err)
			return
		}

		if err := deps.Issuer.Revoke(r.Context(), botID, tokenID); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": tokenID})
	}
}
