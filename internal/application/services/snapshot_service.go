package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
)

// DefaultPageSize is the per-request row cap used when paging the facility table
const DefaultPageSize = 1000

// FacilitySnapshotService loads the whole facility table for batch analysis
type FacilitySnapshotService struct {
	repo     repositories.FacilityRepository
	pageSize int
}

// NewFacilitySnapshotService creates a snapshot service. A non-positive pageSize uses DefaultPageSize.
func NewFacilitySnapshotService(repo repositories.FacilityRepository, pageSize int) *FacilitySnapshotService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &FacilitySnapshotService{repo: repo, pageSize: pageSize}
}

// FetchAll pages through every facility ordered by creation time. Any page
// error aborts the whole fetch; a partial snapshot is never returned.
func (s *FacilitySnapshotService) FetchAll(ctx context.Context) ([]*entities.Facility, error) {
	var all []*entities.Facility
	err := s.Each(ctx, func(page []*entities.Facility) error {
		all = append(all, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Each calls fn with every page in order. It stops at the first page shorter
// than the page size.
func (s *FacilitySnapshotService) Each(ctx context.Context, fn func(page []*entities.Facility) error) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.repo.ListPage(ctx, offset, s.pageSize)
		if err != nil {
			return fmt.Errorf("fetching facilities at offset %d: %w", offset, err)
		}
		if err := fn(page); err != nil {
			return err
		}

		offset += len(page)
		log.Debug().Int("fetched", offset).Msg("facility page loaded")

		if len(page) < s.pageSize {
			return nil
		}
	}
}
