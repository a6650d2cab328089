package entities

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	MaxNoteLength            = 200
	MaxRecommendationTags    = 3
	MaxRecommendationImages  = 3
	DefaultRecommendationTTL = 24 * time.Hour
)

// ReviewCategory is the closed set of recommendation categories
type ReviewCategory string

const (
	ReviewCategoryGourmet    ReviewCategory = "gourmet"
	ReviewCategoryScenery    ReviewCategory = "scenery"
	ReviewCategoryExperience ReviewCategory = "experience"
	ReviewCategoryHealing    ReviewCategory = "healing"
	ReviewCategoryOther      ReviewCategory = "other"
)

// Valid reports whether c is a known category
func (c ReviewCategory) Valid() bool {
	switch c {
	case ReviewCategoryGourmet, ReviewCategoryScenery, ReviewCategoryExperience,
		ReviewCategoryHealing, ReviewCategoryOther:
		return true
	}
	return false
}

// Recommendation is a short word-of-mouth review attributed to a human source
type Recommendation struct {
	ID             string         `json:"id" db:"id"`
	FacilityID     string         `json:"facility_id" db:"facility_id"`
	Note           string         `json:"note" db:"note"`
	FormattedNote  string         `json:"formatted_note" db:"formatted_note"`
	SourceType     string         `json:"source_type" db:"source_type"`
	SourceDetail   string         `json:"source_detail,omitempty" db:"source_detail"`
	ReviewCategory ReviewCategory `json:"review_category" db:"review_category"`
	Season         string         `json:"season,omitempty" db:"season"`
	Tags           []string       `json:"tags" db:"tags"`
	Images         []string       `json:"images" db:"images"`
	AuthorName     string         `json:"author_name,omitempty" db:"author_name"`
	IsAnonymous    bool           `json:"is_anonymous" db:"is_anonymous"`
	IPHash         string         `json:"-" db:"ip_hash"`
	EditableUntil  time.Time      `json:"editable_until" db:"editable_until"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Validate enforces the invariants shared by the create and edit paths
func (r *Recommendation) Validate() error {
	if r.FacilityID == "" {
		return fmt.Errorf("facility_id is required")
	}
	if utf8.RuneCountInString(r.Note) == 0 {
		return fmt.Errorf("note is required")
	}
	if n := utf8.RuneCountInString(r.Note); n > MaxNoteLength {
		return fmt.Errorf("note is %d characters, limit is %d", n, MaxNoteLength)
	}
	if !r.ReviewCategory.Valid() {
		return fmt.Errorf("unknown review_category %q", r.ReviewCategory)
	}
	if len(r.Tags) > MaxRecommendationTags {
		return fmt.Errorf("at most %d tags are allowed", MaxRecommendationTags)
	}
	if len(r.Images) > MaxRecommendationImages {
		return fmt.Errorf("at most %d images are allowed", MaxRecommendationImages)
	}
	if r.IsAnonymous && r.AuthorName != "" {
		return fmt.Errorf("anonymous recommendations cannot carry an author name")
	}
	return nil
}

// EditableAt reports whether the submitter's edit window is still open at t
func (r *Recommendation) EditableAt(t time.Time) bool {
	return t.Before(r.EditableUntil)
}
