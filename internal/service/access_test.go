package service

import (
	"context"
	"testing"

	"github.com/singlebitxyz/gulp/internal/apperr"
	"github.com/singlebitxyz/gulp/internal/model"
)

func TestAccessService_RequireOwner_Success(t *testing.T) {
	bot := &model.Bot{ID: "bot-1", OwnerID: "user-1"}
	a := NewAccessService(&mockBotLookup{bot: bot})

	got, err := a.RequireOwner(context.Background(), "bot-1", "user-1")
	if err != nil {
		t.Fatalf("RequireOwner: %v", err)
	}
	if got.ID != "bot-1" {
		t.Errorf("bot id = %q, want bot-1", got.ID)
	}
}

func TestAccessService_RequireOwner_Forbidden(t *testing.T) {
	bot := &model.Bot{ID: "bot-1", OwnerID: "user-1"}
	a := NewAccessService(&mockBotLookup{bot: bot})

	_, err := a.RequireOwner(context.Background(), "bot-1", "user-2")
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestRequireWidgetScope_AllowedOperations(t *testing.T) {
	for _, scope := range []WidgetScope{ScopeReadBot, ScopeVectorSearch, ScopeInsertQueryLog, ScopeIncrementRateCounter} {
		if err := RequireWidgetScope(scope); err != nil {
			t.Errorf("scope %q: expected no error, got %v", scope, err)
		}
	}
}

func TestRequireWidgetScope_DisallowedOperation(t *testing.T) {
	err := RequireWidgetScope(WidgetScope("delete_bot"))
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}
