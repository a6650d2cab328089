package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

// CreateFacilityRequestInput is a public suggestion for a new facility
type CreateFacilityRequestInput struct {
	Name           string
	Address        string
	Area           string
	Category       string
	RequesterName  string
	RequesterEmail string
}

// FacilityRequestService handles facility suggestions and their moderation
type FacilityRequestService struct {
	repo       repositories.FacilityRequestRepository
	facilities repositories.FacilityRepository
	searchRepo repositories.FacilitySearchRepository
	audit      *AuditService
	now        func() time.Time
}

// NewFacilityRequestService creates a facility request service. searchRepo may be nil.
func NewFacilityRequestService(
	repo repositories.FacilityRequestRepository,
	facilities repositories.FacilityRepository,
	searchRepo repositories.FacilitySearchRepository,
	audit *AuditService,
) *FacilityRequestService {
	return &FacilityRequestService{
		repo:       repo,
		facilities: facilities,
		searchRepo: searchRepo,
		audit:      audit,
		now:        time.Now,
	}
}

// Create stores a pending request
func (s *FacilityRequestService) Create(ctx context.Context, in CreateFacilityRequestInput) (*entities.FacilityRequest, error) {
	now := s.now()
	req := &entities.FacilityRequest{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(in.Name),
		Address:        strings.TrimSpace(in.Address),
		Area:           strings.TrimSpace(in.Area),
		Category:       strings.TrimSpace(in.Category),
		RequesterName:  strings.TrimSpace(in.RequesterName),
		RequesterEmail: strings.TrimSpace(in.RequesterEmail),
		Status:         entities.FacilityRequestPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Name == "" || req.Area == "" || req.Category == "" {
		return nil, apperrors.NewValidationError("name, area and category are required")
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// List returns requests, optionally only those with the given status
func (s *FacilityRequestService) List(ctx context.Context, status entities.FacilityRequestStatus, limit, offset int) ([]*entities.FacilityRequest, error) {
	return s.repo.List(ctx, status, limit, offset)
}

// Approve creates the requested facility and closes the request. A request
// that is no longer pending is a conflict and creates nothing.
func (s *FacilityRequestService) Approve(ctx context.Context, adminID, id, adminNote string) (*entities.Facility, error) {
	req, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	facility := req.ToFacility(uuid.NewString(), s.now())
	if err := facility.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.facilities.Create(ctx, facility); err != nil {
		return nil, err
	}

	if err := s.repo.Resolve(ctx, id, entities.FacilityRequestApproved, adminNote); err != nil {
		// another admin resolved it first; undo the facility we just added
		if delErr := s.facilities.HardDelete(ctx, facility.ID); delErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(delErr).
				Str("facility_id", facility.ID).
				Str("request_id", id).
				Msg("failed to remove facility after approval conflict")
		}
		return nil, err
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Index(ctx, facility); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", facility.ID).Msg("failed to index facility")
		}
	}
	_ = s.audit.Record(ctx, adminID, entities.AuditActionApprove, entities.AuditTargetFacilityRequest, id, map[string]interface{}{
		"facility_id": facility.ID,
		"admin_note":  adminNote,
	})
	return facility, nil
}

// Reject closes a pending request without creating anything
func (s *FacilityRequestService) Reject(ctx context.Context, adminID, id, adminNote string) error {
	if _, err := s.pending(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Resolve(ctx, id, entities.FacilityRequestRejected, adminNote); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, adminID, entities.AuditActionReject, entities.AuditTargetFacilityRequest, id, map[string]interface{}{
		"admin_note": adminNote,
	})
	return nil
}

func (s *FacilityRequestService) pending(ctx context.Context, id string) (*entities.FacilityRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, apperrors.NewConflictError("facility request " + id + " is already " + string(req.Status))
	}
	return req, nil
}
