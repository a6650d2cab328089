package services

import (
	"context"
	"time"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
)

// StatsService builds the admin dashboard overview
type StatsService struct {
	facilities      repositories.FacilityRepository
	recommendations repositories.RecommendationRepository
	reactions       repositories.ReactionRepository
	requests        repositories.FacilityRequestRepository
	now             func() time.Time
}

// NewStatsService creates a stats service
func NewStatsService(
	facilities repositories.FacilityRepository,
	recommendations repositories.RecommendationRepository,
	reactions repositories.ReactionRepository,
	requests repositories.FacilityRequestRepository,
) *StatsService {
	return &StatsService{
		facilities:      facilities,
		recommendations: recommendations,
		reactions:       reactions,
		requests:        requests,
		now:             time.Now,
	}
}

// Dashboard collects the counts shown on the admin overview
func (s *StatsService) Dashboard(ctx context.Context) (*entities.DashboardStats, error) {
	stats := &entities.DashboardStats{}
	var err error

	if stats.Facilities, err = s.facilities.Count(ctx, false); err != nil {
		return nil, err
	}
	if stats.VerifiedFacilities, err = s.facilities.Count(ctx, true); err != nil {
		return nil, err
	}
	if stats.Recommendations, err = s.recommendations.Count(ctx, nil); err != nil {
		return nil, err
	}
	weekAgo := s.now().Add(-7 * 24 * time.Hour)
	if stats.RecommendationsWk, err = s.recommendations.Count(ctx, &weekAgo); err != nil {
		return nil, err
	}
	if stats.Reactions, err = s.reactions.Count(ctx); err != nil {
		return nil, err
	}
	if stats.PendingRequests, err = s.requests.CountPending(ctx); err != nil {
		return nil, err
	}
	if stats.ByCategory, err = s.recommendations.CountByCategory(ctx); err != nil {
		return nil, err
	}
	if stats.ByArea, err = s.facilities.CountByArea(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}
