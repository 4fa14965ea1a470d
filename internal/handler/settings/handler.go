package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aikawa-dev/companion/backend/internal/config"
	"github.com/aikawa-dev/companion/backend/pkg/utils"
)

// Handler serves default configuration values. Per-user overrides live in
// the client store, not on the server.
type Handler struct {
	cfg config.LLMConfig
}

// New creates the handler.
func New(cfg config.LLMConfig) *Handler {
	return &Handler{cfg: cfg}
}

// RegisterRoutes mounts the settings routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/system-prompt/default", h.handleDefaultSystemPrompt)
}

func (h *Handler) handleDefaultSystemPrompt(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"systemPrompt": h.cfg.SystemPrompt,
	})
}
