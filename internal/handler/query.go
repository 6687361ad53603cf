package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/singlebitxyz/gulp/internal/middleware"
	"github.com/singlebitxyz/gulp/internal/model"
	"github.com/singlebitxyz/gulp/internal/provider"
	"github.com/singlebitxyz/gulp/internal/service"
)

// QueryRunner abstracts the C11 query engine for testability.
type QueryRunner interface {
	Query(ctx context.Context, in service.QueryInput) (*service.QueryOutput, error)
}

// QueryRateLimiter abstracts the C13 rate limiter for testability.
type QueryRateLimiter interface {
	Allow(ctx context.Context, botID string, limitPerMinute int) error
}

// QueryBotLookup resolves a bot's rate limit configuration.
type QueryBotLookup interface {
	Get(ctx context.Context, id string) (*model.Bot, error)
}

// QueryDeps bundles dependencies for the dashboard and widget query handlers.
type QueryDeps struct {
	Access    *service.AccessService
	Bots      QueryBotLookup
	Engine    QueryRunner
	RateLimit QueryRateLimiter
}

// HistoryTurn is one turn of caller-supplied chat history.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is the shared request body for both query endpoints.
type QueryRequest struct {
	QueryText       string        `json:"query_text"`
	SessionID       string        `json:"session_id,omitempty"`
	PageURL         *string       `json:"page_url,omitempty"`
	History         []HistoryTurn `json:"history,omitempty"`
	IncludeMetadata bool          `json:"include_metadata,omitempty"`
}

func toChatMessages(turns []HistoryTurn) []provider.ChatMessage {
	if len(turns) == 0 {
		return nil
	}
	out := make([]provider.ChatMessage, len(turns))
	for i, t := range turns {
		out[i] = provider.ChatMessage{Role: t.Role, Content: t.Content}
	}
	return out
}

// DashboardQuery handles POST /api/v1/bots/{id}/query. The caller is the
// bot's owner and may request include_metadata.
func DashboardQuery(deps QueryDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		botID := chi.URLParam(r, "id")
		if !requireValidID(w, botID, "id") {
			return
		}

		bot, err := deps.Access.RequireOwner(r.Context(), botID, userID)
		if err != nil {
			writeErr(w, err)
			return
		}

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		if req.QueryText == "" {
			writeBadRequest(w, "query_text is required")
			return
		}

		if err := deps.RateLimit.Allow(r.Context(), botID, bot.RateLimitPerMin); err != nil {
			writeErr(w, err)
			return
		}

		out, err := deps.Engine.Query(r.Context(), service.QueryInput{
			BotID:           botID,
			QueryText:       req.QueryText,
			SessionID:       req.SessionID,
			PageURL:         req.PageURL,
			History:         toChatMessages(req.History),
			IncludeMetadata: req.IncludeMetadata,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, out)
	}
}

// WidgetQuery handles POST /api/v1/widget/query. The caller is identified
// only by a widget token (middleware.WidgetAuth resolves it to a bot id);
// widget callers never see source metadata beyond chunk_id/heading/score.
func WidgetQuery(deps QueryDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		botID := middleware.WidgetBotIDFromContext(r.Context())
		if err := service.RequireWidgetScope(service.ScopeReadBot); err != nil {
			writeErr(w, err)
			return
		}

		bot, err := deps.Bots.Get(r.Context(), botID)
		if err != nil {
			writeErr(w, err)
			return
		}

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		if req.QueryText == "" {
			writeBadRequest(w, "query_text is required")
			return
		}

		if err := service.RequireWidgetScope(service.ScopeIncrementRateCounter); err != nil {
			writeErr(w, err)
			return
		}
		if err := deps.RateLimit.Allow(r.Context(), botID, bot.RateLimitPerMin); err != nil {
			writeErr(w, err)
			return
		}

		if err := service.RequireWidgetScope(service.ScopeVectorSearch); err != nil {
			writeErr(w, err)
			return
		}
		if err := service.RequireWidgetScope(service.ScopeInsertQueryLog); err != nil {
			writeErr(w, err)
			return
		}

		out, err := deps.Engine.Query(r.Context(), service.QueryInput{
			BotID:           botID,
			QueryText:       req.QueryText,
			SessionID:       req.SessionID,
			PageURL:         req.PageURL,
			History:         toChatMessages(req.History),
			IncludeMetadata: false,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, out)
	}
}
