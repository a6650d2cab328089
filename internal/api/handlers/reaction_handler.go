package handlers

import (
	"context"
	"net/http"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
)

// ReactionService is the reaction behaviour the handler needs
type ReactionService interface {
	Add(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.Reaction, bool, error)
	Remove(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) error
	Summary(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.ReactionSummary, error)
}

// ReactionHandler handles reaction HTTP requests
type ReactionHandler struct {
	service ReactionService
}

// NewReactionHandler creates a new reaction handler
func NewReactionHandler(service ReactionService) *ReactionHandler {
	return &ReactionHandler{service: service}
}

// ReactionRequest identifies the browser and the reaction kind
type ReactionRequest struct {
	ReactionType   string `json:"reaction_type" validate:"omitempty,oneof=thanks"`
	UserIdentifier string `json:"user_identifier" validate:"required,max=100"`
}

func (req ReactionRequest) reactionType() entities.ReactionType {
	if req.ReactionType == "" {
		return entities.ReactionThanks
	}
	return entities.ReactionType(req.ReactionType)
}

// AddReaction handles POST /api/recommendations/{id}/reactions
func (h *ReactionHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	var req ReactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	reaction, created, err := h.service.Add(r.Context(), r.PathValue("id"), req.reactionType(), req.UserIdentifier)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondWithJSON(w, status, reaction)
}

// RemoveReaction handles DELETE /api/recommendations/{id}/reactions.
// The identifier may come from the body or the query string.
func (h *ReactionHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	req := ReactionRequest{
		ReactionType:   r.URL.Query().Get("reaction_type"),
		UserIdentifier: r.URL.Query().Get("user_identifier"),
	}
	if req.UserIdentifier == "" {
		if err := decodeJSON(r, &req); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}

	if err := h.service.Remove(r.Context(), r.PathValue("id"), req.reactionType(), req.UserIdentifier); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetReactions handles GET /api/recommendations/{id}/reactions
func (h *ReactionHandler) GetReactions(w http.ResponseWriter, r *http.Request) {
	req := ReactionRequest{
		ReactionType:   r.URL.Query().Get("reaction_type"),
		UserIdentifier: r.URL.Query().Get("user_identifier"),
	}

	summary, err := h.service.Summary(r.Context(), r.PathValue("id"), req.reactionType(), req.UserIdentifier)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
