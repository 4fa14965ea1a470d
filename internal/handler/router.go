package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aikawa-dev/companion/backend/internal/config"
	agoraHandler "github.com/aikawa-dev/companion/backend/internal/handler/agora"
	avatarHandler "github.com/aikawa-dev/companion/backend/internal/handler/avatar"
	settingsHandler "github.com/aikawa-dev/companion/backend/internal/handler/settings"
	summaryHandler "github.com/aikawa-dev/companion/backend/internal/handler/summary"
	middlewarePkg "github.com/aikawa-dev/companion/backend/internal/middleware"
	agentService "github.com/aikawa-dev/companion/backend/internal/service/agent"
	"github.com/aikawa-dev/companion/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. rater may be nil when the
// LLM endpoint is unconfigured; the summary route then reports the missing
// key instead of calling out.
func NewRouter(cfg *config.Config, agentSvc *agentService.Service, rater summaryHandler.Rater) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Health stays open for load balancers; everything else is behind
	// basic auth when credentials are configured.
	r.Get("/health", handleHealth)

	r.Route("/api", func(api chi.Router) {
		if cfg.Auth.Enabled() {
			api.Use(middleware.BasicAuth("companion", map[string]string{
				cfg.Auth.Username: cfg.Auth.Password,
			}))
		}

		api.Route("/agora", func(sub chi.Router) {
			agoraHandler.New(agentSvc).RegisterRoutes(sub)
		})
		api.Route("/avatar", func(sub chi.Router) {
			avatarHandler.New(cfg.Avatar).RegisterRoutes(sub)
		})
		api.Route("/settings", func(sub chi.Router) {
			settingsHandler.New(cfg.LLM).RegisterRoutes(sub)
		})
		api.Route("/ai-summary", func(sub chi.Router) {
			summaryHandler.New(rater).RegisterRoutes(sub)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
