package providers

import "context"

// PlacesProvider looks up places in an external map service
type PlacesProvider interface {
	// TextSearch returns the places matching a free-text query
	TextSearch(ctx context.Context, query string) ([]*PlaceSummary, error)

	// PlaceDetails fetches the full record for one place
	PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// PlaceSummary is one text search hit
type PlaceSummary struct {
	PlaceID          string
	Name             string
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	Types            []string
}

// PlaceDetails is the detail record of one place
type PlaceDetails struct {
	PlaceID          string
	Name             string
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	Types            []string
	Phone            string
	MapsURL          string
	BusinessStatus   string
}
