package entities

import (
	"time"

	"github.com/google/uuid"
)

// ChangeEventType names what changed
type ChangeEventType string

const (
	ChangeRecommendationCreated ChangeEventType = "recommendation.created"
	ChangeRecommendationUpdated ChangeEventType = "recommendation.updated"
	ChangeRecommendationDeleted ChangeEventType = "recommendation.deleted"
	ChangeReactionAdded         ChangeEventType = "reaction.added"
	ChangeReactionRemoved       ChangeEventType = "reaction.removed"
)

// ChangeEvent is broadcast to realtime subscribers when public content changes
type ChangeEvent struct {
	ID         string          `json:"id"`
	Type       ChangeEventType `json:"type"`
	FacilityID string          `json:"facility_id,omitempty"`
	TargetID   string          `json:"target_id"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewChangeEvent creates a change event stamped with the current time
func NewChangeEvent(eventType ChangeEventType, facilityID, targetID string) *ChangeEvent {
	return &ChangeEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		FacilityID: facilityID,
		TargetID:   targetID,
		Timestamp:  time.Now().UTC(),
	}
}
