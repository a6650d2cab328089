package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/middleware"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
)

// FacilityService is the facility behaviour the handler needs
type FacilityService interface {
	GetByID(ctx context.Context, id string) (*entities.Facility, error)
	GetPublic(ctx context.Context, id string) (*entities.Facility, error)
	List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error)
	Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error)
	Update(ctx context.Context, adminID string, facility *entities.Facility) error
	SoftDelete(ctx context.Context, adminID, id string) error
}

// FacilityHandler handles facility-related HTTP requests
type FacilityHandler struct {
	service FacilityService
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(service FacilityService) *FacilityHandler {
	return &FacilityHandler{service: service}
}

// GetFacility handles GET /api/facilities/{id}
func (h *FacilityHandler) GetFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if facilityID == "" {
		respondWithError(w, http.StatusBadRequest, "facility ID is required")
		return
	}

	facility, err := h.service.GetPublic(r.Context(), facilityID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, facility)
}

// ListFacilities handles GET /api/facilities
func (h *FacilityHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	query := r.URL.Query()
	filter := repositories.FacilityFilter{
		Area:         query.Get("area"),
		Category:     query.Get("category"),
		Query:        strings.TrimSpace(query.Get("q")),
		VerifiedOnly: true,
		Limit:        limit,
		Offset:       offset,
	}

	facilities, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": facilities,
		"count":      len(facilities),
	})
}

// SearchFacilities handles GET /api/facilities/search
func (h *FacilityHandler) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	query := r.URL.Query()
	params := repositories.SearchParams{
		Query:    strings.TrimSpace(query.Get("q")),
		Area:     query.Get("area"),
		Category: query.Get("category"),
		Limit:    limit,
		Offset:   offset,
	}
	if params.Query == "" {
		respondWithError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	facilities, err := h.service.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": facilities,
		"count":      len(facilities),
		"query":      params.Query,
	})
}

// AdminGetFacility handles GET /api/admin/facilities/{id}. Hidden facilities are included.
func (h *FacilityHandler) AdminGetFacility(w http.ResponseWriter, r *http.Request) {
	facility, err := h.service.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, facility)
}

// UpdateFacilityRequest is the PATCH body. Absent fields keep their value.
type UpdateFacilityRequest struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=200"`
	NameKana      *string  `json:"name_kana" validate:"omitempty,max=200"`
	Address       *string  `json:"address" validate:"omitempty,max=300"`
	Area          *string  `json:"area" validate:"omitempty,min=1,max=100"`
	Category      *string  `json:"category" validate:"omitempty,min=1,max=100"`
	Latitude      *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Longitude     *float64 `json:"lng" validate:"omitempty,min=-180,max=180"`
	GoogleMapsURL *string  `json:"google_maps_url" validate:"omitempty,url"`
	Phone         *string  `json:"phone" validate:"omitempty,max=50"`
	IsVerified    *bool    `json:"is_verified"`
}

func (req *UpdateFacilityRequest) apply(f *entities.Facility) {
	if req.Name != nil {
		f.Name = strings.TrimSpace(*req.Name)
	}
	if req.NameKana != nil {
		f.NameKana = strings.TrimSpace(*req.NameKana)
	}
	if req.Address != nil {
		f.Address = strings.TrimSpace(*req.Address)
	}
	if req.Area != nil {
		f.Area = strings.TrimSpace(*req.Area)
	}
	if req.Category != nil {
		f.Category = strings.TrimSpace(*req.Category)
	}
	if req.Latitude != nil {
		f.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		f.Longitude = req.Longitude
	}
	if req.GoogleMapsURL != nil {
		f.GoogleMapsURL = strings.TrimSpace(*req.GoogleMapsURL)
	}
	if req.Phone != nil {
		f.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.IsVerified != nil {
		f.IsVerified = *req.IsVerified
	}
}

// AdminUpdateFacility handles PATCH /api/admin/facilities/{id}
func (h *FacilityHandler) AdminUpdateFacility(w http.ResponseWriter, r *http.Request) {
	var req UpdateFacilityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facility, err := h.service.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	req.apply(facility)

	if err := h.service.Update(r.Context(), adminID(r), facility); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, facility)
}

// AdminDeleteFacility handles DELETE /api/admin/facilities/{id}
func (h *FacilityHandler) AdminDeleteFacility(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SoftDelete(r.Context(), adminID(r), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminID returns the subject of the admin session, or "" for public callers
func adminID(r *http.Request) string {
	if claims, ok := middleware.AdminFromContext(r.Context()); ok {
		return claims.Subject
	}
	return ""
}
