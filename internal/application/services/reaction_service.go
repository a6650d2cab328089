package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

// ReactionService toggles "thanks" reactions on recommendations
type ReactionService struct {
	repo            repositories.ReactionRepository
	recommendations repositories.RecommendationRepository
	events          providers.EventBus
	now             func() time.Time
}

// NewReactionService creates a reaction service. events may be nil.
func NewReactionService(repo repositories.ReactionRepository, recommendations repositories.RecommendationRepository, events providers.EventBus) *ReactionService {
	return &ReactionService{
		repo:            repo,
		recommendations: recommendations,
		events:          events,
		now:             time.Now,
	}
}

// Add records a reaction. Adding one the browser already left returns the
// existing reaction with created=false.
func (s *ReactionService) Add(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.Reaction, bool, error) {
	if err := validateReaction(reactionType, userIdentifier); err != nil {
		return nil, false, err
	}
	rec, err := s.recommendations.GetByID(ctx, recommendationID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.Find(ctx, recommendationID, reactionType, userIdentifier)
	if err == nil {
		return existing, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, err
	}

	reaction := &entities.Reaction{
		ID:               uuid.NewString(),
		RecommendationID: recommendationID,
		ReactionType:     reactionType,
		UserIdentifier:   userIdentifier,
		CreatedAt:        s.now(),
	}
	if err := s.repo.Create(ctx, reaction); err != nil {
		// lost a race with a concurrent add from the same browser
		if apperrors.Is(err, apperrors.ErrorTypeConflict) {
			if existing, findErr := s.repo.Find(ctx, recommendationID, reactionType, userIdentifier); findErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	publishChange(ctx, s.events, entities.NewChangeEvent(entities.ChangeReactionAdded, rec.FacilityID, rec.ID))
	return reaction, true, nil
}

// Remove deletes the browser's reaction. Removing an absent reaction is not an error.
func (s *ReactionService) Remove(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) error {
	if err := validateReaction(reactionType, userIdentifier); err != nil {
		return err
	}

	existing, err := s.repo.Find(ctx, recommendationID, reactionType, userIdentifier)
	if apperrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, existing.ID); err != nil && !apperrors.IsNotFound(err) {
		return err
	}

	facilityID := ""
	if rec, err := s.recommendations.GetByID(ctx, recommendationID); err == nil {
		facilityID = rec.FacilityID
	}
	publishChange(ctx, s.events, entities.NewChangeEvent(entities.ChangeReactionRemoved, facilityID, recommendationID))
	return nil
}

// Summary counts reactions on a recommendation and reports whether the caller left one
func (s *ReactionService) Summary(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.ReactionSummary, error) {
	if !reactionType.Valid() {
		return nil, apperrors.NewValidationError("unknown reaction type " + string(reactionType))
	}
	count, err := s.repo.CountByRecommendation(ctx, recommendationID, reactionType)
	if err != nil {
		return nil, err
	}

	summary := &entities.ReactionSummary{
		RecommendationID: recommendationID,
		ReactionType:     reactionType,
		Count:            count,
	}
	if strings.TrimSpace(userIdentifier) != "" {
		_, err := s.repo.Find(ctx, recommendationID, reactionType, userIdentifier)
		switch {
		case err == nil:
			summary.Reacted = true
		case !apperrors.IsNotFound(err):
			return nil, err
		}
	}
	return summary, nil
}

func validateReaction(reactionType entities.ReactionType, userIdentifier string) error {
	if !reactionType.Valid() {
		return apperrors.NewValidationError("unknown reaction type " + string(reactionType))
	}
	if strings.TrimSpace(userIdentifier) == "" {
		return apperrors.NewValidationError("user identifier is required")
	}
	return nil
}
