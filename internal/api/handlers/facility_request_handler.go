package handlers

import (
	"context"
	"net/http"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
)

// FacilityRequestService is the facility request behaviour the handler needs
type FacilityRequestService interface {
	Create(ctx context.Context, in services.CreateFacilityRequestInput) (*entities.FacilityRequest, error)
	List(ctx context.Context, status entities.FacilityRequestStatus, limit, offset int) ([]*entities.FacilityRequest, error)
	Approve(ctx context.Context, adminID, id, adminNote string) (*entities.Facility, error)
	Reject(ctx context.Context, adminID, id, adminNote string) error
}

// FacilityRequestHandler handles facility suggestions and their moderation
type FacilityRequestHandler struct {
	service FacilityRequestService
}

// NewFacilityRequestHandler creates a new facility request handler
func NewFacilityRequestHandler(service FacilityRequestService) *FacilityRequestHandler {
	return &FacilityRequestHandler{service: service}
}

// CreateFacilityRequestBody is the public suggestion form
type CreateFacilityRequestBody struct {
	Name           string `json:"name" validate:"required,max=200"`
	Address        string `json:"address" validate:"max=300"`
	Area           string `json:"area" validate:"required,max=100"`
	Category       string `json:"category" validate:"required,max=100"`
	RequesterName  string `json:"requester_name" validate:"max=100"`
	RequesterEmail string `json:"requester_email" validate:"omitempty,email"`
}

// ModerationBody carries an optional note for approve and reject
type ModerationBody struct {
	AdminNote string `json:"admin_note" validate:"max=500"`
}

// CreateFacilityRequest handles POST /api/facility-requests
func (h *FacilityRequestHandler) CreateFacilityRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateFacilityRequestBody
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	req, err := h.service.Create(r.Context(), services.CreateFacilityRequestInput{
		Name:           body.Name,
		Address:        body.Address,
		Area:           body.Area,
		Category:       body.Category,
		RequesterName:  body.RequesterName,
		RequesterEmail: body.RequesterEmail,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, req)
}

// ListFacilityRequests handles GET /api/admin/facility-requests?status=
func (h *FacilityRequestHandler) ListFacilityRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	status := entities.FacilityRequestStatus(r.URL.Query().Get("status"))
	switch status {
	case "", entities.FacilityRequestPending, entities.FacilityRequestApproved, entities.FacilityRequestRejected:
	default:
		respondWithError(w, http.StatusBadRequest, "status must be one of pending, approved, rejected")
		return
	}

	requests, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// ApproveFacilityRequest handles POST /api/admin/facility-requests/{id}/approve
func (h *FacilityRequestHandler) ApproveFacilityRequest(w http.ResponseWriter, r *http.Request) {
	body, ok := h.moderationBody(w, r)
	if !ok {
		return
	}
	facility, err := h.service.Approve(r.Context(), adminID(r), r.PathValue("id"), body.AdminNote)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   entities.FacilityRequestApproved,
		"facility": facility,
	})
}

// RejectFacilityRequest handles POST /api/admin/facility-requests/{id}/reject
func (h *FacilityRequestHandler) RejectFacilityRequest(w http.ResponseWriter, r *http.Request) {
	body, ok := h.moderationBody(w, r)
	if !ok {
		return
	}
	if err := h.service.Reject(r.Context(), adminID(r), r.PathValue("id"), body.AdminNote); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status": entities.FacilityRequestRejected,
	})
}

// moderationBody decodes the optional note. An empty body is allowed.
func (h *FacilityRequestHandler) moderationBody(w http.ResponseWriter, r *http.Request) (ModerationBody, bool) {
	var body ModerationBody
	if r.ContentLength == 0 {
		return body, true
	}
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return body, false
	}
	return body, true
}
