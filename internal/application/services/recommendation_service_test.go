package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

type recommendationFixture struct {
	recs       *mockRecommendationRepo
	facilities *mockFacilityRepo
	audits     *mockAuditRepo
	bus        *recordingBus
	svc        *RecommendationService
	now        time.Time
}

func newRecommendationFixture() *recommendationFixture {
	fx := &recommendationFixture{
		recs:       new(mockRecommendationRepo),
		facilities: new(mockFacilityRepo),
		audits:     new(mockAuditRepo),
		bus:        newRecordingBus(),
		now:        time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.svc = NewRecommendationService(fx.recs, fx.facilities, fx.bus, NewAuditService(fx.audits), "pepper", 24*time.Hour)
	fx.svc.now = fixedClock(fx.now)
	return fx
}

func validInput() CreateRecommendationInput {
	return CreateRecommendationInput{
		FacilityID:     "fac-1",
		Note:           "  朝の<b>モーニング</b>が最高 & 安い<script>alert(1)</script> ",
		SourceType:     "friend",
		ReviewCategory: "gourmet",
		Tags:           []string{"朝食", " 朝食 ", "", "コーヒー"},
		AuthorName:     "たろう",
		ClientIP:       "203.0.113.7",
	}
}

func TestRecommendationService_Create(t *testing.T) {
	fx := newRecommendationFixture()
	fx.facilities.On("GetByID", mock.Anything, "fac-1").Return(&entities.Facility{ID: "fac-1", IsVerified: true}, nil)
	fx.recs.On("Create", mock.Anything, mock.AnythingOfType("*entities.Recommendation")).Return(nil).Once()

	rec, err := fx.svc.Create(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, "朝のモーニングが最高 & 安い", rec.Note)
	assert.Equal(t, rec.Note, rec.FormattedNote)
	assert.Equal(t, []string{"朝食", "コーヒー"}, rec.Tags)
	assert.Equal(t, []string{}, rec.Images)
	assert.Equal(t, HashIP("pepper", "203.0.113.7"), rec.IPHash)
	assert.NotContains(t, rec.IPHash, "203.0.113.7")
	assert.Len(t, rec.IPHash, 64)
	assert.Equal(t, fx.now.Add(24*time.Hour), rec.EditableUntil)

	events := fx.bus.on(providers.EventChannelChanges)
	require.Len(t, events, 1)
	assert.Equal(t, entities.ChangeRecommendationCreated, events[0].Type)
	assert.Len(t, fx.bus.on(providers.GetFacilityChannel("fac-1")), 1)
	fx.recs.AssertExpectations(t)
}

func TestRecommendationService_Create_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRecommendationInput)
	}{
		{"note too long", func(in *CreateRecommendationInput) { in.Note = strings.Repeat("あ", 201) }},
		{"empty after sanitizing", func(in *CreateRecommendationInput) { in.Note = "<script>x</script>" }},
		{"too many tags", func(in *CreateRecommendationInput) { in.Tags = []string{"a", "b", "c", "d"} }},
		{"too many images", func(in *CreateRecommendationInput) { in.Images = []string{"1", "2", "3", "4"} }},
		{"anonymous with name", func(in *CreateRecommendationInput) { in.IsAnonymous = true }},
		{"unknown category", func(in *CreateRecommendationInput) { in.ReviewCategory = "nightlife" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newRecommendationFixture()
			fx.facilities.On("GetByID", mock.Anything, "fac-1").Return(&entities.Facility{ID: "fac-1", IsVerified: true}, nil)

			in := validInput()
			tt.mutate(&in)
			_, err := fx.svc.Create(context.Background(), in)

			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), err.Error())
			fx.recs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestRecommendationService_Create_HiddenFacility(t *testing.T) {
	fx := newRecommendationFixture()
	fx.facilities.On("GetByID", mock.Anything, "fac-1").Return(&entities.Facility{ID: "fac-1", IsVerified: false}, nil)

	_, err := fx.svc.Create(context.Background(), validInput())

	assert.True(t, apperrors.IsNotFound(err))
}

func storedRecommendation(editableUntil time.Time) *entities.Recommendation {
	return &entities.Recommendation{
		ID:             "rec-1",
		FacilityID:     "fac-1",
		Note:           "元のメモ",
		FormattedNote:  "元のメモ",
		ReviewCategory: entities.ReviewCategoryScenery,
		Tags:           []string{"夕日"},
		Images:         []string{},
		EditableUntil:  editableUntil,
	}
}

func TestRecommendationService_Update_WithinWindow(t *testing.T) {
	fx := newRecommendationFixture()
	fx.recs.On("GetByID", mock.Anything, "rec-1").Return(storedRecommendation(fx.now.Add(time.Hour)), nil)
	fx.recs.On("Update", mock.Anything, mock.AnythingOfType("*entities.Recommendation")).Return(nil).Once()

	note := "新しいメモ"
	anonymous := true
	rec, err := fx.svc.Update(context.Background(), "", "rec-1", UpdateRecommendationInput{
		Note:        &note,
		Tags:        []string{"夕日", "川"},
		IsAnonymous: &anonymous,
	})

	require.NoError(t, err)
	assert.Equal(t, "新しいメモ", rec.FormattedNote)
	assert.Equal(t, []string{"夕日", "川"}, rec.Tags)
	assert.True(t, rec.IsAnonymous)
	fx.audits.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestRecommendationService_Update_WindowClosed(t *testing.T) {
	fx := newRecommendationFixture()
	fx.recs.On("GetByID", mock.Anything, "rec-1").Return(storedRecommendation(fx.now), nil)

	note := "遅すぎた"
	_, err := fx.svc.Update(context.Background(), "", "rec-1", UpdateRecommendationInput{Note: &note})

	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeForbidden))
	fx.recs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRecommendationService_Update_AnonymityEnforced(t *testing.T) {
	fx := newRecommendationFixture()
	fx.recs.On("GetByID", mock.Anything, "rec-1").Return(storedRecommendation(fx.now.Add(time.Hour)), nil)

	name := "はなこ"
	anonymous := true
	_, err := fx.svc.Update(context.Background(), "", "rec-1", UpdateRecommendationInput{AuthorName: &name, IsAnonymous: &anonymous})

	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}

func TestRecommendationService_AdminDelete_AfterWindowAudits(t *testing.T) {
	fx := newRecommendationFixture()
	fx.recs.On("GetByID", mock.Anything, "rec-1").Return(storedRecommendation(fx.now.Add(-48*time.Hour)), nil)
	fx.recs.On("Delete", mock.Anything, "rec-1").Return(nil).Once()
	fx.audits.On("Append", mock.Anything, mock.MatchedBy(func(e *entities.AuditLog) bool {
		return e.Action == entities.AuditActionDelete && e.TargetType == entities.AuditTargetRecommendation &&
			e.TargetID == "rec-1" && e.AdminID == AdminSubject
	})).Return(nil).Once()

	err := fx.svc.Delete(context.Background(), AdminSubject, "rec-1")

	require.NoError(t, err)
	fx.audits.AssertExpectations(t)
	events := fx.bus.on(providers.EventChannelChanges)
	require.Len(t, events, 1)
	assert.Equal(t, entities.ChangeRecommendationDeleted, events[0].Type)
}

func TestHashIP(t *testing.T) {
	assert.Equal(t, "", HashIP("salt", ""))
	assert.NotEqual(t, HashIP("a", "1.2.3.4"), HashIP("b", "1.2.3.4"))
	assert.Equal(t, HashIP("a", "1.2.3.4"), HashIP("a", "1.2.3.4"))
}
