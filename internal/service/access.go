package service

import (
	"context"
	"fmt"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/model"
)

// WidgetScope enumerates the operations a widget-token-authorized caller
// may perform, per spec: read the bot (for system_prompt + llm_config),
// vector search within the bot, insert a query log, increment the rate
// counter. Anything else is out of scope for a widget principal.
type WidgetScope string

const (
	ScopeReadBot              WidgetScope = "read_bot"
	ScopeVectorSearch         WidgetScope = "vector_search"
	ScopeInsertQueryLog       WidgetScope = "insert_query_log"
	ScopeIncrementRateCounter WidgetScope = "increment_rate_counter"
)

var widgetAllowedScopes = map[WidgetScope]bool{
	ScopeReadBot:              true,
	ScopeVectorSearch:         true,
	ScopeInsertQueryLog:       true,
	ScopeIncrementRateCounter: true,
}

// AccessService implements the C14 ownership-check contract: every
// mutating operation first verifies the acting principal owns the bot it
// targets, and widget-token principals are confined to a fixed allowlist
// of read/query-path operations.
type AccessService struct {
	bots BotLookup
}

// NewAccessService creates an AccessService.
func NewAccessService(bots BotLookup) *AccessService {
	return &AccessService{bots: bots}
}

// RequireOwner fetches botID and verifies userID is its owner, returning
// apperr.Forbidden if not and propagating apperr.NotFound if the bot does
// not exist.
func (a *AccessService) RequireOwner(ctx context.Context, botID, userID string) (*model.Bot, error) {
	bot, err := a.bots.Get(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("service.AccessService.RequireOwner: %w", err)
	}
	if bot.OwnerID != userID {
		return nil, apperr.New(apperr.Forbidden, "user does not own this bot")
	}
	return bot, nil
}

// RequireWidgetScope rejects any operation a widget-token principal is not
// permitted to perform. Widget principals are never checked against
// bot ownership since the widget token itself already resolves to exactly
// one bot and MUST NOT be used to reach any other tenant's data.
func RequireWidgetScope(scope WidgetScope) error {
	if !widgetAllowedScopes[scope] {
		return apperr.New(apperr.Forbidden, fmt.Sprintf("widget token may not perform %q", scope))
	}
	return nil
}
