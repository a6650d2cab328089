package repositories

import (
	"context"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
)

// FacilityRequestRepository defines persistence for facility requests
type FacilityRequestRepository interface {
	Create(ctx context.Context, req *entities.FacilityRequest) error
	GetByID(ctx context.Context, id string) (*entities.FacilityRequest, error)
	List(ctx context.Context, status entities.FacilityRequestStatus, limit, offset int) ([]*entities.FacilityRequest, error)

	// Resolve moves a pending request to a terminal status. It reports a
	// conflict when the request is no longer pending.
	Resolve(ctx context.Context, id string, status entities.FacilityRequestStatus, adminNote string) error

	CountPending(ctx context.Context) (int, error)
}
