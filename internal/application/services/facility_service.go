package services

import (
	"context"
	"strings"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

// FacilityService handles business logic for facilities
type FacilityService struct {
	repo       repositories.FacilityRepository
	searchRepo repositories.FacilitySearchRepository
	audit      *AuditService
}

// NewFacilityService creates a new facility service. searchRepo may be nil.
func NewFacilityService(repo repositories.FacilityRepository, searchRepo repositories.FacilitySearchRepository, audit *AuditService) *FacilityService {
	return &FacilityService{
		repo:       repo,
		searchRepo: searchRepo,
		audit:      audit,
	}
}

// GetByID retrieves a facility by ID regardless of visibility
func (s *FacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	return s.repo.GetByID(ctx, id)
}

// GetPublic retrieves a facility that is visible to the public
func (s *FacilityService) GetPublic(ctx context.Context, id string) (*entities.Facility, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.IsVerified {
		return nil, apperrors.NewNotFoundError("facility with id " + id + " not found")
	}
	return f, nil
}

// List retrieves facilities
func (s *FacilityService) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	return s.repo.List(ctx, filter)
}

// Search finds verified facilities through the search index when one is
// configured, falling back to a database substring match
func (s *FacilityService) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	params.Query = strings.TrimSpace(params.Query)

	if s.searchRepo != nil {
		ids, err := s.searchRepo.Search(ctx, params)
		if err == nil {
			return s.loadVisible(ctx, ids)
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("search index unavailable, falling back to database")
	}

	return s.repo.List(ctx, repositories.FacilityFilter{
		Area:         params.Area,
		Category:     params.Category,
		Query:        params.Query,
		VerifiedOnly: true,
		Limit:        params.Limit,
		Offset:       params.Offset,
	})
}

// loadVisible resolves index hits in order, dropping rows deleted or hidden since indexing
func (s *FacilityService) loadVisible(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	facilities := make([]*entities.Facility, 0, len(ids))
	for _, id := range ids {
		f, err := s.repo.GetByID(ctx, id)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if f.IsVerified {
			facilities = append(facilities, f)
		}
	}
	return facilities, nil
}

// Update overwrites a facility on behalf of an admin and reindexes it
func (s *FacilityService) Update(ctx context.Context, adminID string, facility *entities.Facility) error {
	if err := facility.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if err := s.repo.Update(ctx, facility); err != nil {
		return err
	}

	s.reindex(ctx, facility)
	_ = s.audit.Record(ctx, adminID, entities.AuditActionUpdate, entities.AuditTargetFacility, facility.ID, map[string]interface{}{
		"name":        facility.Name,
		"area":        facility.Area,
		"category":    facility.Category,
		"is_verified": facility.IsVerified,
	})
	return nil
}

// SoftDelete hides a facility on behalf of an admin
func (s *FacilityService) SoftDelete(ctx context.Context, adminID, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Delete(ctx, id); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", id).Msg("failed to remove facility from index")
		}
	}
	_ = s.audit.Record(ctx, adminID, entities.AuditActionDelete, entities.AuditTargetFacility, id, map[string]interface{}{"soft": true})
	return nil
}

func (s *FacilityService) reindex(ctx context.Context, facility *entities.Facility) {
	if s.searchRepo == nil {
		return
	}
	var err error
	if facility.IsVerified {
		err = s.searchRepo.Index(ctx, facility)
	} else {
		err = s.searchRepo.Delete(ctx, facility.ID)
	}
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", facility.ID).Msg("failed to update facility index")
	}
}
