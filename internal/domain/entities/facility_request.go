package entities

import "time"

// FacilityRequestStatus is the moderation state of a request
type FacilityRequestStatus string

const (
	FacilityRequestPending  FacilityRequestStatus = "pending"
	FacilityRequestApproved FacilityRequestStatus = "approved"
	FacilityRequestRejected FacilityRequestStatus = "rejected"
)

// FacilityRequest is a public suggestion for a facility that is not listed yet
type FacilityRequest struct {
	ID             string                `json:"id" db:"id"`
	Name           string                `json:"name" db:"name"`
	Address        string                `json:"address" db:"address"`
	Area           string                `json:"area" db:"area"`
	Category       string                `json:"category" db:"category"`
	RequesterName  string                `json:"requester_name,omitempty" db:"requester_name"`
	RequesterEmail string                `json:"requester_email,omitempty" db:"requester_email"`
	Status         FacilityRequestStatus `json:"status" db:"status"`
	AdminNote      string                `json:"admin_note,omitempty" db:"admin_note"`
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at" db:"updated_at"`
}

// IsPending reports whether the request can still be moderated
func (r *FacilityRequest) IsPending() bool {
	return r.Status == FacilityRequestPending
}

// ToFacility builds the facility an approval spawns
func (r *FacilityRequest) ToFacility(id string, now time.Time) *Facility {
	return &Facility{
		ID:         id,
		Name:       r.Name,
		Address:    r.Address,
		Area:       r.Area,
		Category:   r.Category,
		IsVerified: true,
		CreatedBy:  FacilityCreatorAdmin,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
