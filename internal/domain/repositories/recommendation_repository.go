package repositories

import (
	"context"
	"time"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
)

// RecommendationRepository defines persistence for recommendations
type RecommendationRepository interface {
	Create(ctx context.Context, rec *entities.Recommendation) error
	GetByID(ctx context.Context, id string) (*entities.Recommendation, error)
	Update(ctx context.Context, rec *entities.Recommendation) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter RecommendationFilter) ([]*entities.Recommendation, error)
	Count(ctx context.Context, since *time.Time) (int, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
}

// RecommendationFilter narrows recommendation listings. Results are newest first.
type RecommendationFilter struct {
	FacilityID     string
	ReviewCategory string
	Tag            string
	Limit          int
	Offset         int
}
