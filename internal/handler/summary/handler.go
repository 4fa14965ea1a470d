package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	summaryservice "github.com/aikawa-dev/companion/backend/internal/service/summary"
	"github.com/aikawa-dev/companion/backend/pkg/utils"
)

// Rater produces a coaching verdict for a transcript.
type Rater interface {
	SummarizeAndRate(ctx context.Context, transcript []summaryservice.TranscriptEntry, customPrompt string) (summaryservice.Result, error)
}

// Handler exposes the conversation summary route.
type Handler struct {
	rater Rater
}

// New creates the handler. rater may be nil when the LLM is unconfigured.
func New(rater Rater) *Handler {
	return &Handler{rater: rater}
}

// RegisterRoutes mounts the summary routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/summarize-and-rate", h.handleSummarizeAndRate)
}

func (h *Handler) handleSummarizeAndRate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Transcript        []summaryservice.TranscriptEntry `json:"transcript"`
		CoachRatingPrompt string                           `json:"coachRatingPrompt"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(payload.Transcript) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "Invalid transcript. Please provide an array of conversation messages.")
		return
	}

	if h.rater == nil {
		utils.RespondError(w, http.StatusInternalServerError, "LLM API key not configured")
		return
	}

	result, err := h.rater.SummarizeAndRate(r.Context(), payload.Transcript, payload.CoachRatingPrompt)
	if err != nil {
		if errors.Is(err, summaryservice.ErrEmptyTranscript) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondErrorDetails(w, http.StatusInternalServerError, "Failed to generate conversation summary", err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}
