package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

// EditGrantCookiePrefix prefixes the per-recommendation edit grant cookie name
const EditGrantCookiePrefix = "kc_edit_"

// RecommendationService is the recommendation behaviour the handler needs
type RecommendationService interface {
	Create(ctx context.Context, in services.CreateRecommendationInput) (*entities.Recommendation, error)
	List(ctx context.Context, filter repositories.RecommendationFilter) ([]*entities.Recommendation, error)
	Update(ctx context.Context, adminID, id string, in services.UpdateRecommendationInput) (*entities.Recommendation, error)
	Delete(ctx context.Context, adminID, id string) error
}

// EditGrants issues and checks the submitter's edit grant
type EditGrants interface {
	IssueEditGrant(recommendationID string, expiresAt time.Time) (string, error)
	VerifyEditGrant(ctx context.Context, token, recommendationID string) error
}

// RecommendationHandler handles recommendation HTTP requests
type RecommendationHandler struct {
	service      RecommendationService
	grants       EditGrants
	secureCookie bool
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(service RecommendationService, grants EditGrants, secureCookie bool) *RecommendationHandler {
	return &RecommendationHandler{
		service:      service,
		grants:       grants,
		secureCookie: secureCookie,
	}
}

// CreateRecommendationRequest is the public submission body
type CreateRecommendationRequest struct {
	FacilityID     string   `json:"facility_id" validate:"required"`
	Note           string   `json:"note" validate:"required"`
	SourceType     string   `json:"source_type" validate:"max=50"`
	SourceDetail   string   `json:"source_detail" validate:"max=200"`
	ReviewCategory string   `json:"review_category" validate:"required,oneof=gourmet scenery experience healing other"`
	Season         string   `json:"season" validate:"max=50"`
	Tags           []string `json:"tags" validate:"max=3,dive,max=30"`
	Images         []string `json:"images" validate:"max=3,dive,url"`
	AuthorName     string   `json:"author_name" validate:"max=50,excluded_if=IsAnonymous true"`
	IsAnonymous    bool     `json:"is_anonymous"`
}

// UpdateRecommendationRequest is the edit body. Absent fields keep their value.
type UpdateRecommendationRequest struct {
	Note           *string  `json:"note" validate:"omitempty,min=1"`
	SourceType     *string  `json:"source_type" validate:"omitempty,max=50"`
	SourceDetail   *string  `json:"source_detail" validate:"omitempty,max=200"`
	ReviewCategory *string  `json:"review_category" validate:"omitempty,oneof=gourmet scenery experience healing other"`
	Season         *string  `json:"season" validate:"omitempty,max=50"`
	Tags           []string `json:"tags" validate:"omitempty,max=3,dive,max=30"`
	Images         []string `json:"images" validate:"omitempty,max=3,dive,url"`
	AuthorName     *string  `json:"author_name" validate:"omitempty,max=50"`
	IsAnonymous    *bool    `json:"is_anonymous"`
}

// CreateRecommendation handles POST /api/recommendations
func (h *RecommendationHandler) CreateRecommendation(w http.ResponseWriter, r *http.Request) {
	var req CreateRecommendationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	rec, err := h.service.Create(r.Context(), services.CreateRecommendationInput{
		FacilityID:     req.FacilityID,
		Note:           req.Note,
		SourceType:     req.SourceType,
		SourceDetail:   req.SourceDetail,
		ReviewCategory: req.ReviewCategory,
		Season:         req.Season,
		Tags:           req.Tags,
		Images:         req.Images,
		AuthorName:     req.AuthorName,
		IsAnonymous:    req.IsAnonymous,
		ClientIP:       clientIP(r),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	token, err := h.grants.IssueEditGrant(rec.ID, rec.EditableUntil)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     EditGrantCookiePrefix + rec.ID,
		Value:    token,
		Path:     "/",
		Expires:  rec.EditableUntil,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	respondWithJSON(w, http.StatusCreated, rec)
}

// ListRecent handles GET /api/recommendations
func (h *RecommendationHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	h.list(w, r, repositories.RecommendationFilter{
		ReviewCategory: r.URL.Query().Get("category"),
		Tag:            r.URL.Query().Get("tag"),
		Limit:          limit,
		Offset:         offset,
	})
}

// ListByFacility handles GET /api/facilities/{id}/recommendations
func (h *RecommendationHandler) ListByFacility(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	h.list(w, r, repositories.RecommendationFilter{
		FacilityID:     r.PathValue("id"),
		ReviewCategory: r.URL.Query().Get("category"),
		Limit:          limit,
		Offset:         offset,
	})
}

func (h *RecommendationHandler) list(w http.ResponseWriter, r *http.Request, filter repositories.RecommendationFilter) {
	recs, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// UpdateRecommendation handles PATCH /api/recommendations/{id}
func (h *RecommendationHandler) UpdateRecommendation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor, err := h.authorizeEdit(r, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var req UpdateRecommendationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	rec, err := h.service.Update(r.Context(), actor, id, services.UpdateRecommendationInput{
		Note:           req.Note,
		SourceType:     req.SourceType,
		SourceDetail:   req.SourceDetail,
		ReviewCategory: req.ReviewCategory,
		Season:         req.Season,
		Tags:           req.Tags,
		Images:         req.Images,
		AuthorName:     req.AuthorName,
		IsAnonymous:    req.IsAnonymous,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// DeleteRecommendation handles DELETE /api/recommendations/{id}
func (h *RecommendationHandler) DeleteRecommendation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor, err := h.authorizeEdit(r, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if actor == "" {
		h.clearGrant(w, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminDeleteRecommendation handles DELETE /api/admin/recommendations/{id}
func (h *RecommendationHandler) AdminDeleteRecommendation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), adminID(r), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeEdit returns the admin id when an admin session is attached,
// otherwise checks the submitter's edit grant and returns ""
func (h *RecommendationHandler) authorizeEdit(r *http.Request, id string) (string, error) {
	if admin := adminID(r); admin != "" {
		return admin, nil
	}
	cookie, err := r.Cookie(EditGrantCookiePrefix + id)
	if err != nil || cookie.Value == "" {
		return "", apperrors.NewUnauthorizedError("no edit grant for this recommendation")
	}
	if err := h.grants.VerifyEditGrant(r.Context(), cookie.Value, id); err != nil {
		return "", err
	}
	return "", nil
}

func (h *RecommendationHandler) clearGrant(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     EditGrantCookiePrefix + id,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
