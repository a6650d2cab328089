package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

func newReactionFixture() (*mockReactionRepo, *mockRecommendationRepo, *recordingBus, *ReactionService) {
	reactions := new(mockReactionRepo)
	recs := new(mockRecommendationRepo)
	bus := newRecordingBus()
	recs.On("GetByID", mock.Anything, "rec-1").Return(&entities.Recommendation{ID: "rec-1", FacilityID: "fac-1"}, nil)
	return reactions, recs, bus, NewReactionService(reactions, recs, bus)
}

func TestReactionService_Add_New(t *testing.T) {
	reactions, _, bus, svc := newReactionFixture()
	reactions.On("Find", mock.Anything, "rec-1", entities.ReactionThanks, "browser-1").
		Return(nil, apperrors.NewNotFoundError("reaction not found")).Once()
	reactions.On("Create", mock.Anything, mock.AnythingOfType("*entities.Reaction")).Return(nil).Once()

	r, created, err := svc.Add(context.Background(), "rec-1", entities.ReactionThanks, "browser-1")

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "browser-1", r.UserIdentifier)
	require.Len(t, bus.on(providers.EventChannelChanges), 1)
	assert.Equal(t, entities.ChangeReactionAdded, bus.on(providers.EventChannelChanges)[0].Type)
}

func TestReactionService_Add_IsIdempotent(t *testing.T) {
	reactions, _, bus, svc := newReactionFixture()
	existing := &entities.Reaction{ID: "r-1", RecommendationID: "rec-1", ReactionType: entities.ReactionThanks, UserIdentifier: "browser-1"}
	reactions.On("Find", mock.Anything, "rec-1", entities.ReactionThanks, "browser-1").Return(existing, nil).Once()

	r, created, err := svc.Add(context.Background(), "rec-1", entities.ReactionThanks, "browser-1")

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "r-1", r.ID)
	reactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, bus.on(providers.EventChannelChanges))
}

func TestReactionService_Add_LostRaceReturnsExisting(t *testing.T) {
	reactions, _, _, svc := newReactionFixture()
	existing := &entities.Reaction{ID: "r-9"}
	reactions.On("Find", mock.Anything, "rec-1", entities.ReactionThanks, "browser-1").
		Return(nil, apperrors.NewNotFoundError("reaction not found")).Once()
	reactions.On("Create", mock.Anything, mock.Anything).Return(apperrors.NewConflictError("reaction already exists")).Once()
	reactions.On("Find", mock.Anything, "rec-1", entities.ReactionThanks, "browser-1").Return(existing, nil).Once()

	r, created, err := svc.Add(context.Background(), "rec-1", entities.ReactionThanks, "browser-1")

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "r-9", r.ID)
}

func TestReactionService_Add_Validation(t *testing.T) {
	_, _, _, svc := newReactionFixture()

	_, _, err := svc.Add(context.Background(), "rec-1", "like", "browser-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

	_, _, err = svc.Add(context.Background(), "rec-1", entities.ReactionThanks, " ")
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
}

func TestReactionService_Remove(t *testing.T) {
	reactions, _, bus, svc := newReactionFixture()
	reactions.On("Find", mock.Anything, "rec-1", entities.ReactionThanks, "browser-1").
		Return(&entities.Reaction{ID: "r-1"}, nil).Once()
	reactions.On("Delete", mock.Anything, "r-1").Return(nil).Once()

	require.NoError(t, svc.Remove(context.Background(), "rec-1", entities.ReactionThanks, "browser-1"))
	require.Len(t, bus.on(providers.GetFacilityChannel("fac-1")), 1)

	reactions.On("Find", mock.Anything, "rec-1", entities.ReactionThanks, "browser-2").
		Return(nil, apperrors.NewNotFoundError("reaction not found")).Once()
	require.NoError(t, svc.Remove(context.Background(), "rec-1", entities.ReactionThanks, "browser-2"))
	reactions.AssertExpectations(t)
}

func TestReactionService_Summary(t *testing.T) {
	reactions, _, _, svc := newReactionFixture()
	reactions.On("CountByRecommendation", mock.Anything, "rec-1", entities.ReactionThanks).Return(5, nil)
	reactions.On("Find", mock.Anything, "rec-1", entities.ReactionThanks, "browser-1").Return(&entities.Reaction{ID: "r-1"}, nil)

	summary, err := svc.Summary(context.Background(), "rec-1", entities.ReactionThanks, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Count)
	assert.True(t, summary.Reacted)

	summary, err = svc.Summary(context.Background(), "rec-1", entities.ReactionThanks, "")
	require.NoError(t, err)
	assert.False(t, summary.Reacted)
}
