package entities

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FacilityCreator records which flow inserted a facility
type FacilityCreator string

const (
	FacilityCreatorAPI   FacilityCreator = "api"
	FacilityCreatorAdmin FacilityCreator = "admin"
	FacilityCreatorUser  FacilityCreator = "user"
)

// Valid reports whether c is one of the known creators
func (c FacilityCreator) Valid() bool {
	switch c {
	case FacilityCreatorAPI, FacilityCreatorAdmin, FacilityCreatorUser:
		return true
	}
	return false
}

// Facility is a place that recommendations are written about
type Facility struct {
	ID            string          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	NameKana      string          `json:"name_kana,omitempty" db:"name_kana"`
	Address       string          `json:"address" db:"address"`
	Area          string          `json:"area" db:"area"`
	Category      string          `json:"category" db:"category"`
	Latitude      *float64        `json:"lat,omitempty" db:"lat"`
	Longitude     *float64        `json:"lng,omitempty" db:"lng"`
	PlaceID       string          `json:"place_id,omitempty" db:"place_id"`
	GoogleMapsURL string          `json:"google_maps_url,omitempty" db:"google_maps_url"`
	Phone         string          `json:"phone,omitempty" db:"phone"`
	IsVerified    bool            `json:"is_verified" db:"is_verified"`
	CreatedBy     FacilityCreator `json:"created_by" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Coordinates returns the facility position when both components are present
func (f *Facility) Coordinates() (lat, lng float64, ok bool) {
	if f.Latitude == nil || f.Longitude == nil {
		return 0, 0, false
	}
	return *f.Latitude, *f.Longitude, true
}

// SetCoordinates stores a position on the facility
func (f *Facility) SetCoordinates(lat, lng float64) {
	f.Latitude = &lat
	f.Longitude = &lng
}

// Validate checks the fields every write path requires
func (f *Facility) Validate() error {
	var missing []string
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(f.Area) == "" {
		missing = append(missing, "area")
	}
	if strings.TrimSpace(f.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if (f.Latitude == nil) != (f.Longitude == nil) {
		return fmt.Errorf("lat and lng must be set together")
	}
	if lat, lng, ok := f.Coordinates(); ok {
		if !isFinite(lat) || !isFinite(lng) {
			return fmt.Errorf("lat/lng must be finite numbers")
		}
		if lat < -90 || lat > 90 {
			return fmt.Errorf("lat %f out of range", lat)
		}
		if lng < -180 || lng > 180 {
			return fmt.Errorf("lng %f out of range", lng)
		}
	}
	if f.CreatedBy != "" && !f.CreatedBy.Valid() {
		return fmt.Errorf("unknown created_by %q", f.CreatedBy)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
