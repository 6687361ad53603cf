package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/singlebitxyz/gulp/internal/middleware"
	"github.com/singlebitxyz/gulp/internal/model"
	"github.com/singlebitxyz/gulp/internal/service"
)

// BotStore abstracts bot CRUD for testability.
type BotStore interface {
	Create(ctx context.Context, b *model.Bot) error
	Get(ctx context.Context, id string) (*model.Bot, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Bot, error)
	Update(ctx context.Context, b *model.Bot) error
	Delete(ctx context.Context, id string) error
}

// BotSourceLister is the narrow slice of SourceStore bot deletion needs to
// clean up object-store bytes the database cascade does not reach.
type BotSourceLister interface {
	ListByBot(ctx context.Context, botID string) ([]*model.Source, error)
}

// ObjectDeleter abstracts object-store byte deletion.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// BotDeps bundles dependencies for the bot CRUD handlers.
type BotDeps struct {
	Bots    BotStore
	Access  *service.AccessService
	Sources BotSourceLister
	Objects ObjectDeleter

	DefaultTopK      int
	DefaultMinScore  float64
	DefaultRateLimit int
}

// CreateBotRequest is the POST /bots request body.
type CreateBotRequest struct {
	Name            string            `json:"name"`
	Description     *string           `json:"description,omitempty"`
	SystemPrompt    string            `json:"system_prompt"`
	LLMProvider     model.LLMProvider `json:"llm_provider"`
	LLMConfig       model.LLMConfig   `json:"llm_config"`
	RetentionDays   int               `json:"retention_days"`
	RateLimitPerMin int               `json:"rate_limit_per_minute"`
	TopK            int               `json:"top_k"`
	MinScore        float64           `json:"min_score"`
}

// CreateBot handles POST /api/v1/bots.
func CreateBot(deps BotDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var req CreateBotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		if req.Name == "" {
			writeBadRequest(w, "name is required")
			return
		}
		if req.LLMProvider != model.ProviderOpenAI && req.LLMProvider != model.ProviderGemini {
			writeBadRequest(w, "llm_provider must be \"openai\" or \"gemini\"")
			return
		}
		if req.LLMConfig.Temperature < 0 || req.LLMConfig.Temperature > 2 {
			writeBadRequest(w, "llm_config.temperature must be within [0,2]")
			return
		}
		if req.LLMConfig.MaxTokens < 1 {
			writeBadRequest(w, "llm_config.max_tokens must be >= 1")
			return
		}

		topK := req.TopK
		if topK == 0 {
			topK = deps.DefaultTopK
		}
		minScore := req.MinScore
		if minScore == 0 {
			minScore = deps.DefaultMinScore
		}
		rateLimit := req.RateLimitPerMin
		if rateLimit == 0 {
			rateLimit = deps.DefaultRateLimit
		}

		bot := &model.Bot{
			OwnerID:         userID,
			Name:            req.Name,
			Description:     req.Description,
			SystemPrompt:    req.SystemPrompt,
			LLMProvider:     req.LLMProvider,
			LLMConfig:       req.LLMConfig,
			RetentionDays:   req.RetentionDays,
			RateLimitPerMin: rateLimit,
			TopK:            topK,
			MinScore:        minScore,
		}
		if err := deps.Bots.Create(r.Context(), bot); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, bot)
	}
}

// ListBots handles GET /api/v1/bots.
func ListBots(deps BotDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		bots, err := deps.Bots.ListByOwner(r.Context(), userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, bots)
	}
}

// GetBot handles GET /api/v1/bots/{id}.
func GetBot(deps BotDeps) http.HandlerFunc {
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
		writeData(w, http.StatusOK, bot)
	}
}

// UpdateBotRequest is the PATCH /bots/{id} request body; every field is
// optional and left untouched when omitted.
type UpdateBotRequest struct {
	Name            *string            `json:"name,omitempty"`
	Description     *string            `json:"description,omitempty"`
	SystemPrompt    *string            `json:"system_prompt,omitempty"`
	LLMProvider     *model.LLMProvider `json:"llm_provider,omitempty"`
	LLMConfig       *model.LLMConfig   `json:"llm_config,omitempty"`
	RetentionDays   *int               `json:"retention_days,omitempty"`
	RateLimitPerMin *int               `json:"rate_limit_per_minute,omitempty"`
	TopK            *int               `json:"top_k,omitempty"`
	MinScore        *float64           `json:"min_score,omitempty"`
}

// UpdateBot handles PATCH /api/v1/bots/{id}.
func UpdateBot(deps BotDeps) http.HandlerFunc {
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

		var req UpdateBotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		if req.LLMConfig != nil {
			if req.LLMConfig.Temperature < 0 || req.LLMConfig.Temperature > 2 {
				writeBadRequest(w, "llm_config.temperature must be within [0,2]")
				return
			}
			if req.LLMConfig.MaxTokens < 1 {
				writeBadRequest(w, "llm_config.max_tokens must be >= 1")
				return
			}
		}

		if req.Name != nil {
			bot.Name = *req.Name
		}
		if req.Description != nil {
			bot.Description = req.Description
		}
		if req.SystemPrompt != nil {
			bot.SystemPrompt = *req.SystemPrompt
		}
		if req.LLMProvider != nil {
			bot.LLMProvider = *req.LLMProvider
		}
		if req.LLMConfig != nil {
			bot.LLMConfig = *req.LLMConfig
		}
		if req.RetentionDays != nil {
			bot.RetentionDays = *req.RetentionDays
		}
		if req.RateLimitPerMin != nil {
			bot.RateLimitPerMin = *req.RateLimitPerMin
		}
		if req.TopK != nil {
			bot.TopK = *req.TopK
		}
		if req.MinScore != nil {
			bot.MinScore = *req.MinScore
		}

		if err := deps.Bots.Update(r.Context(), bot); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, bot)
	}
}

// DeleteBot handles DELETE /api/v1/bots/{id}. The database cascade removes
// sources/chunks/widget-tokens/query-logs/rate-counters; the object store
// does not cascade, so source bytes are removed here first, best-effort.
func DeleteBot(deps BotDeps) http.HandlerFunc {
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

		if deps.Sources != nil && deps.Objects != nil {
			sources, err := deps.Sources.ListByBot(r.Context(), botID)
			if err == nil {
				for _, s := range sources {
					if s.StoragePath == "" {
						continue
					}
					if err := deps.Objects.Delete(r.Context(), s.StoragePath); err != nil {
						_ = err // best-effort: DB cascade is the source of truth
					}
				}
			}
		}

		if err := deps.Bots.Delete(r.Context(), botID); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": botID})
	}
}
