package entities

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFacilityValidate(t *testing.T) {
	f := &Facility{Name: "道の駅", Area: "北区", Category: "gourmet"}
	assert.NoError(t, f.Validate())

	f.Latitude = new(float64)
	assert.Error(t, f.Validate(), "lat without lng")

	f.SetCoordinates(95, 137)
	assert.Error(t, f.Validate())

	f.SetCoordinates(math.NaN(), math.NaN())
	assert.Error(t, f.Validate(), "NaN passes range comparisons")

	f.SetCoordinates(35.1, math.Inf(1))
	assert.Error(t, f.Validate())

	f.SetCoordinates(35.1, 137.2)
	assert.NoError(t, f.Validate())

	err := (&Facility{Name: " "}).Validate()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "name, area, category")
	}

	f.CreatedBy = "robot"
	assert.Error(t, f.Validate())
}

func TestRecommendationValidate(t *testing.T) {
	base := func() *Recommendation {
		return &Recommendation{
			FacilityID:     "f1",
			Note:           "朝市の焼き餅がおいしい",
			ReviewCategory: ReviewCategoryGourmet,
		}
	}

	assert.NoError(t, base().Validate())

	r := base()
	r.Note = strings.Repeat("あ", MaxNoteLength)
	assert.NoError(t, r.Validate(), "limit counts characters, not bytes")
	r.Note += "あ"
	assert.Error(t, r.Validate())

	r = base()
	r.Tags = []string{"a", "b", "c", "d"}
	assert.Error(t, r.Validate())

	r = base()
	r.IsAnonymous = true
	r.AuthorName = "山田"
	assert.Error(t, r.Validate())

	r = base()
	r.ReviewCategory = "nightlife"
	assert.Error(t, r.Validate())
}

func TestRecommendationEditableAt(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	r := &Recommendation{EditableUntil: now.Add(DefaultRecommendationTTL)}

	assert.True(t, r.EditableAt(now))
	assert.False(t, r.EditableAt(now.Add(DefaultRecommendationTTL)))
}

func TestFacilityRequestToFacility(t *testing.T) {
	now := time.Now()
	req := &FacilityRequest{Name: "かわせみ食堂", Address: "1-2", Area: "南区", Category: "gourmet", Status: FacilityRequestPending}

	f := req.ToFacility("new-id", now)

	assert.True(t, req.IsPending())
	assert.Equal(t, "new-id", f.ID)
	assert.Equal(t, FacilityCreatorAdmin, f.CreatedBy)
	assert.True(t, f.IsVerified)
	assert.NoError(t, f.Validate())
}
