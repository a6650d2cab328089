package repositories

import (
	"context"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
)

// FacilityRepository defines the interface for facility data operations
type FacilityRepository interface {
	// Create inserts a new facility
	Create(ctx context.Context, facility *entities.Facility) error

	// GetByID retrieves a facility by ID regardless of verification
	GetByID(ctx context.Context, id string) (*entities.Facility, error)

	// Update overwrites a facility's mutable fields
	Update(ctx context.Context, facility *entities.Facility) error

	// SoftDelete hides a facility by clearing is_verified
	SoftDelete(ctx context.Context, id string) error

	// HardDelete removes the row. Used only by maintenance tools.
	HardDelete(ctx context.Context, id string) error

	// List retrieves facilities with filters
	List(ctx context.Context, filter FacilityFilter) ([]*entities.Facility, error)

	// ListPage returns one page ordered by created_at ascending, id ascending
	ListPage(ctx context.Context, offset, limit int) ([]*entities.Facility, error)

	// ListPlaceIDs returns every non-empty external place id
	ListPlaceIDs(ctx context.Context) ([]string, error)

	// Count returns the number of facilities, optionally only verified ones
	Count(ctx context.Context, verifiedOnly bool) (int, error)

	// CountByArea groups verified facilities by area
	CountByArea(ctx context.Context) (map[string]int, error)
}

// FacilitySearchRepository is the full-text facility index
type FacilitySearchRepository interface {
	// Search returns matching facility ids in relevance order
	Search(ctx context.Context, params SearchParams) ([]string, error)

	// Index adds or replaces a facility document
	Index(ctx context.Context, facility *entities.Facility) error

	// Delete removes a facility from the index
	Delete(ctx context.Context, id string) error
}

// FacilityFilter defines filters for listing facilities
type FacilityFilter struct {
	Area         string
	Category     string
	Query        string
	VerifiedOnly bool
	Limit        int
	Offset       int
}

// SearchParams defines parameters for facility search
type SearchParams struct {
	Query    string
	Area     string
	Category string
	Limit    int
	Offset   int
}
