package middleware

import (
	"context"
	"net/http"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

type widgetBotIDKey struct{}

// WidgetTokenValidator resolves a widget bearer token + request origin to
// the bot it is scoped to.
type WidgetTokenValidator interface {
	Validate(ctx context.Context, plaintext, originOrReferer string) (botID string, err error)
}

// WidgetBotIDFromContext retrieves the bot id a widget token resolved to.
func WidgetBotIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(widgetBotIDKey{}).(string)
	return id
}

// WidgetAuth returns middleware that validates the widget bearer token
// against validator and, on success, stores the resolved bot id in context.
// Unlike InternalOrUserAuth this never falls back to internal service auth: widget
// endpoints are public and MUST NOT accept the internal bypass.
func WidgetAuth(validator WidgetTokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				respondError(w, http.StatusUnauthorized, "missing widget token")
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = r.Header.Get("Referer")
			}

			botID, err := validator.Validate(r.Context(), token, origin)
			if err != nil {
				respondError(w, widgetAuthStatus(err), err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), widgetBotIDKey{}, botID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// widgetAuthStatus maps a widget-token validation failure to the HTTP
// status the error handling design assigns it: domain mismatch is
// Forbidden, everything else (unknown token, expired token) is Unauthorized.
func widgetAuthStatus(err error) int {
	if apperr.KindOf(err) == apperr.DomainNotAllowed {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}
