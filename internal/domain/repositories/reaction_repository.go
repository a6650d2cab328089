package repositories

import (
	"context"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
)

// ReactionRepository defines persistence for reactions
type ReactionRepository interface {
	Create(ctx context.Context, reaction *entities.Reaction) error
	Find(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.Reaction, error)
	Delete(ctx context.Context, id string) error
	CountByRecommendation(ctx context.Context, recommendationID string, reactionType entities.ReactionType) (int, error)
	Count(ctx context.Context) (int, error)
}
