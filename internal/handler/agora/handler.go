package agora

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	agentservice "github.com/aikawa-dev/companion/backend/internal/service/agent"
	"github.com/aikawa-dev/companion/backend/pkg/utils"
)

// Handler exposes the conversational-AI session routes.
type Handler struct {
	agentSvc *agentservice.Service
}

// New creates the handler.
func New(agentSvc *agentservice.Service) *Handler {
	return &Handler{agentSvc: agentSvc}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/channel-info", h.handleChannelInfo)
	r.Post("/start", h.handleStart)
	r.Delete("/stop/{agentID}", h.handleStop)
}

func (h *Handler) handleChannelInfo(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	rawUID := r.URL.Query().Get("uid")

	if channel == "" || rawUID == "" {
		utils.RespondError(w, http.StatusBadRequest, "Channel and uid are required")
		return
	}

	uid, err := strconv.Atoi(rawUID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "uid must be an integer")
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.agentSvc.ChannelInfo(channel, uid))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req agentservice.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.agentSvc.StartConversation(r.Context(), req)
	if err != nil {
		if errors.Is(err, agentservice.ErrChannelRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		var vendorErr *agentservice.VendorError
		if errors.As(err, &vendorErr) {
			utils.RespondErrorDetails(w, http.StatusInternalServerError, "Failed to start conversation", json.RawMessage(vendorErr.Details))
			return
		}
		utils.RespondErrorDetails(w, http.StatusInternalServerError, "Failed to start conversation", err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	result, err := h.agentSvc.StopConversation(r.Context(), agentID)
	if err != nil {
		// Only a missing agent id reaches here; vendor failures already
		// degrade to a demo success inside the service.
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}
