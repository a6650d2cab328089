package entities

import "time"

// ReactionType is the kind of reaction a browser leaves on a recommendation
type ReactionType string

// ReactionThanks is currently the only reaction offered
const ReactionThanks ReactionType = "thanks"

// Valid reports whether t is an offered reaction
func (t ReactionType) Valid() bool {
	return t == ReactionThanks
}

// Reaction is one browser's reaction to a recommendation. UserIdentifier is an
// opaque per-browser id, not an authenticated identity.
type Reaction struct {
	ID               string       `json:"id" db:"id"`
	RecommendationID string       `json:"recommendation_id" db:"recommendation_id"`
	ReactionType     ReactionType `json:"reaction_type" db:"reaction_type"`
	UserIdentifier   string       `json:"-" db:"user_identifier"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// ReactionSummary aggregates reactions of one type on a recommendation
type ReactionSummary struct {
	RecommendationID string       `json:"recommendation_id"`
	ReactionType     ReactionType `json:"reaction_type"`
	Count            int          `json:"count"`
	Reacted          bool         `json:"reacted"`
}
