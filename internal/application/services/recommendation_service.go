package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

// CreateRecommendationInput is a public recommendation submission
type CreateRecommendationInput struct {
	FacilityID     string
	Note           string
	SourceType     string
	SourceDetail   string
	ReviewCategory string
	Season         string
	Tags           []string
	Images         []string
	AuthorName     string
	IsAnonymous    bool
	ClientIP       string
}

// UpdateRecommendationInput carries the fields an edit may change. Nil fields are left as they are.
type UpdateRecommendationInput struct {
	Note           *string
	SourceType     *string
	SourceDetail   *string
	ReviewCategory *string
	Season         *string
	Tags           []string
	Images         []string
	AuthorName     *string
	IsAnonymous    *bool
}

// RecommendationService handles recommendation submissions and moderation
type RecommendationService struct {
	repo       repositories.RecommendationRepository
	facilities repositories.FacilityRepository
	events     providers.EventBus
	audit      *AuditService
	sanitizer  *bluemonday.Policy
	ipSalt     string
	editWindow time.Duration
	now        func() time.Time
}

// NewRecommendationService creates a recommendation service. events may be nil.
func NewRecommendationService(
	repo repositories.RecommendationRepository,
	facilities repositories.FacilityRepository,
	events providers.EventBus,
	audit *AuditService,
	ipSalt string,
	editWindow time.Duration,
) *RecommendationService {
	if editWindow <= 0 {
		editWindow = entities.DefaultRecommendationTTL
	}
	return &RecommendationService{
		repo:       repo,
		facilities: facilities,
		events:     events,
		audit:      audit,
		sanitizer:  bluemonday.StrictPolicy(),
		ipSalt:     ipSalt,
		editWindow: editWindow,
		now:        time.Now,
	}
}

// Create stores a new recommendation on a visible facility
func (s *RecommendationService) Create(ctx context.Context, in CreateRecommendationInput) (*entities.Recommendation, error) {
	facility, err := s.facilities.GetByID(ctx, in.FacilityID)
	if err != nil {
		return nil, err
	}
	if !facility.IsVerified {
		return nil, apperrors.NewNotFoundError("facility with id " + in.FacilityID + " not found")
	}

	now := s.now()
	note := s.sanitize(in.Note)
	rec := &entities.Recommendation{
		ID:             uuid.NewString(),
		FacilityID:     in.FacilityID,
		Note:           note,
		FormattedNote:  note,
		SourceType:     strings.TrimSpace(in.SourceType),
		SourceDetail:   s.sanitize(in.SourceDetail),
		ReviewCategory: entities.ReviewCategory(in.ReviewCategory),
		Season:         strings.TrimSpace(in.Season),
		Tags:           cleanList(in.Tags),
		Images:         cleanList(in.Images),
		AuthorName:     s.sanitize(in.AuthorName),
		IsAnonymous:    in.IsAnonymous,
		IPHash:         HashIP(s.ipSalt, in.ClientIP),
		EditableUntil:  now.Add(s.editWindow),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := rec.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.publish(ctx, entities.ChangeRecommendationCreated, rec)
	return rec, nil
}

// GetByID retrieves a recommendation
func (s *RecommendationService) GetByID(ctx context.Context, id string) (*entities.Recommendation, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns recommendations, newest first
func (s *RecommendationService) List(ctx context.Context, filter repositories.RecommendationFilter) ([]*entities.Recommendation, error) {
	return s.repo.List(ctx, filter)
}

// Update applies an edit. Without an adminID the edit window must still be open.
func (s *RecommendationService) Update(ctx context.Context, adminID, id string, in UpdateRecommendationInput) (*entities.Recommendation, error) {
	rec, err := s.editable(ctx, adminID, id)
	if err != nil {
		return nil, err
	}

	if in.Note != nil {
		rec.Note = s.sanitize(*in.Note)
		rec.FormattedNote = rec.Note
	}
	if in.SourceType != nil {
		rec.SourceType = strings.TrimSpace(*in.SourceType)
	}
	if in.SourceDetail != nil {
		rec.SourceDetail = s.sanitize(*in.SourceDetail)
	}
	if in.ReviewCategory != nil {
		rec.ReviewCategory = entities.ReviewCategory(*in.ReviewCategory)
	}
	if in.Season != nil {
		rec.Season = strings.TrimSpace(*in.Season)
	}
	if in.Tags != nil {
		rec.Tags = cleanList(in.Tags)
	}
	if in.Images != nil {
		rec.Images = cleanList(in.Images)
	}
	if in.AuthorName != nil {
		rec.AuthorName = s.sanitize(*in.AuthorName)
	}
	if in.IsAnonymous != nil {
		rec.IsAnonymous = *in.IsAnonymous
	}
	if err := rec.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	rec.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	if adminID != "" {
		_ = s.audit.Record(ctx, adminID, entities.AuditActionUpdate, entities.AuditTargetRecommendation, rec.ID, map[string]interface{}{
			"facility_id": rec.FacilityID,
		})
	}
	s.publish(ctx, entities.ChangeRecommendationUpdated, rec)
	return rec, nil
}

// Delete removes a recommendation. Without an adminID the edit window must still be open.
func (s *RecommendationService) Delete(ctx context.Context, adminID, id string) error {
	rec, err := s.editable(ctx, adminID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if adminID != "" {
		_ = s.audit.Record(ctx, adminID, entities.AuditActionDelete, entities.AuditTargetRecommendation, id, map[string]interface{}{
			"facility_id": rec.FacilityID,
			"note":        rec.Note,
		})
	}
	s.publish(ctx, entities.ChangeRecommendationDeleted, rec)
	return nil
}

func (s *RecommendationService) editable(ctx context.Context, adminID, id string) (*entities.Recommendation, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if adminID == "" && !rec.EditableAt(s.now()) {
		return nil, apperrors.NewForbiddenError("the edit window for this recommendation has closed")
	}
	return rec, nil
}

func (s *RecommendationService) sanitize(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(in)))
}

func (s *RecommendationService) publish(ctx context.Context, eventType entities.ChangeEventType, rec *entities.Recommendation) {
	publishChange(ctx, s.events, entities.NewChangeEvent(eventType, rec.FacilityID, rec.ID))
}

// HashIP returns the hex SHA-256 of salt+ip. An empty ip hashes to "".
func HashIP(salt, ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}

// cleanList trims entries and drops blanks and repeats, keeping order
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// publishChange sends an event on the global channel and the facility channel.
// Delivery is best-effort.
func publishChange(ctx context.Context, bus providers.EventBus, event *entities.ChangeEvent) {
	if bus == nil {
		return
	}
	logger := observability.LoggerFromContext(ctx)
	if err := bus.Publish(ctx, providers.EventChannelChanges, event); err != nil {
		logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish change event")
		return
	}
	if event.FacilityID != "" {
		if err := bus.Publish(ctx, providers.GetFacilityChannel(event.FacilityID), event); err != nil {
			logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish facility event")
		}
	}
}
