package avatar

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aikawa-dev/companion/backend/internal/config"
	"github.com/aikawa-dev/companion/backend/pkg/utils"
)

// Handler exposes avatar vendor configuration to the frontend.
type Handler struct {
	cfg config.AvatarConfig
}

// New creates the handler.
func New(cfg config.AvatarConfig) *Handler {
	return &Handler{cfg: cfg}
}

// RegisterRoutes mounts the avatar routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.handleConfig)
	r.Get("/validate", h.handleValidate)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":    h.cfg.Enabled(),
		"avatarId":   h.cfg.AvatarID,
		"sampleRate": h.cfg.SampleRate,
	})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	missing := h.cfg.MissingKeys()
	valid := len(missing) == 0

	message := "Avatar setup is complete"
	if !valid {
		message = fmt.Sprintf("Missing required environment variables: %s", strings.Join(missing, ", "))
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":       valid,
		"missingKeys": missing,
		"message":     message,
	})
}
