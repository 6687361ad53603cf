package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/singlebitxyz/gulp/internal/handler"
	"github.com/singlebitxyz/gulp/internal/middleware"
	"github.com/singlebitxyz/gulp/internal/service"
)

// Dependencies holds all injected services needed by the router.
type Dependencies struct {
	DB                 handler.DBPinger
	AuthService        *service.AuthService
	FrontendURL        string
	Version            string
	Metrics            *middleware.Metrics
	MetricsReg         *prometheus.Registry
	InternalAuthSecret string

	BotDeps         handler.BotDeps
	SourceDeps      handler.SourceDeps
	WidgetTokenDeps handler.WidgetTokenDeps
	QueryDeps       handler.QueryDeps

	WidgetValidator middleware.WidgetTokenValidator
}

// New creates and configures the Chi router with all routes.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	// Public routes (no auth)
	r.Get("/api/health", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	timeout30s := middleware.Timeout(30 * time.Second)

	// Dashboard routes — require a user's bearer token (or the internal
	// service bypass for server-to-server callers).
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(deps.FrontendURL))
		r.Use(middleware.InternalOrUserAuth(deps.AuthService, deps.InternalAuthSecret))

		r.With(timeout30s).Post("/api/v1/bots", handler.CreateBot(deps.BotDeps))
		r.With(timeout30s).Get("/api/v1/bots", handler.ListBots(deps.BotDeps))
		r.With(timeout30s).Get("/api/v1/bots/{id}", handler.GetBot(deps.BotDeps))
		r.With(timeout30s).Patch("/api/v1/bots/{id}", handler.UpdateBot(deps.BotDeps))
		r.With(timeout30s).Delete("/api/v1/bots/{id}", handler.DeleteBot(deps.BotDeps))

		r.With(timeout30s).Post("/api/v1/bots/{id}/sources/upload", handler.UploadSource(deps.SourceDeps))
		r.With(timeout30s).Post("/api/v1/bots/{id}/sources/url", handler.SubmitURLSource(deps.SourceDeps))
		r.With(timeout30s).Get("/api/v1/bots/{id}/sources", handler.ListSources(deps.SourceDeps))
		r.With(timeout30s).Get("/api/v1/bots/{id}/sources/{sid}", handler.GetSource(deps.SourceDeps))
		r.With(timeout30s).Delete("/api/v1/bots/{id}/sources/{sid}", handler.DeleteSource(deps.SourceDeps))

		r.With(timeout30s).Post("/api/v1/bots/{id}/widget-tokens", handler.CreateWidgetToken(deps.WidgetTokenDeps))
		r.With(timeout30s).Get("/api/v1/bots/{id}/widget-tokens", handler.ListWidgetTokens(deps.WidgetTokenDeps))
		r.With(timeout30s).Delete("/api/v1/bots/{id}/widget-tokens/{tid}", handler.RevokeWidgetToken(deps.WidgetTokenDeps))

		// Query generation can take longer than the default write timeout.
		r.With(middleware.Timeout(60 * time.Second)).Post("/api/v1/bots/{id}/query", handler.DashboardQuery(deps.QueryDeps))
	})

	// Widget routes — public, authenticated by widget token rather than a
	// user session. CORS is permissive here: the token + allowed-domain
	// check is the actual access control, not the Origin header.
	r.Group(func(r chi.Router) {
		r.Use(middleware.WidgetCORS())
		r.Use(middleware.WidgetAuth(deps.WidgetValidator))

		r.With(middleware.Timeout(60 * time.Second)).Post("/api/v1/widget/query", handler.WidgetQuery(deps.QueryDeps))
	})

	// 404 fallback
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "error",
			"message": "route not found",
		})
	})

	return r
}
