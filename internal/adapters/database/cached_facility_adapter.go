package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
)

// CachedFacilityAdapter wraps a FacilityRepository with a read-through cache
// for single facility lookups. Writes invalidate the cached entry.
type CachedFacilityAdapter struct {
	repositories.FacilityRepository
	cache providers.CacheProvider
}

// NewCachedFacilityAdapter creates a new cached facility adapter
func NewCachedFacilityAdapter(adapter repositories.FacilityRepository, cache providers.CacheProvider) repositories.FacilityRepository {
	return &CachedFacilityAdapter{
		FacilityRepository: adapter,
		cache:              cache,
	}
}

const facilityByIDTTL = 5 * time.Minute

func facilityCacheKey(id string) string {
	return fmt.Sprintf("facility:%s", id)
}

// GetByID retrieves a facility by ID with caching
func (a *CachedFacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	cacheKey := facilityCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var facility entities.Facility
		if err := json.Unmarshal(cached, &facility); err == nil {
			return &facility, nil
		}
		log.Warn().Str("facility_id", id).Msg("discarding undecodable cached facility")
	}

	facility, err := a.FacilityRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(facility); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, facilityByIDTTL); err != nil {
			log.Warn().Err(err).Str("facility_id", id).Msg("failed to cache facility")
		}
	}
	return facility, nil
}

// Update updates the facility and invalidates its cache entry
func (a *CachedFacilityAdapter) Update(ctx context.Context, facility *entities.Facility) error {
	if err := a.FacilityRepository.Update(ctx, facility); err != nil {
		return err
	}
	a.invalidate(ctx, facility.ID)
	return nil
}

// SoftDelete hides the facility and invalidates its cache entry
func (a *CachedFacilityAdapter) SoftDelete(ctx context.Context, id string) error {
	if err := a.FacilityRepository.SoftDelete(ctx, id); err != nil {
		return err
	}
	a.invalidate(ctx, id)
	return nil
}

// HardDelete removes the facility and invalidates its cache entry
func (a *CachedFacilityAdapter) HardDelete(ctx context.Context, id string) error {
	if err := a.FacilityRepository.HardDelete(ctx, id); err != nil {
		return err
	}
	a.invalidate(ctx, id)
	return nil
}

func (a *CachedFacilityAdapter) invalidate(ctx context.Context, id string) {
	if err := a.cache.Delete(ctx, facilityCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("facility_id", id).Msg("failed to invalidate cached facility")
	}
}
