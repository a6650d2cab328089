package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
)

// AuditService records admin actions
type AuditService struct {
	repo repositories.AuditLogRepository
	now  func() time.Time
}

// NewAuditService creates a new audit service
func NewAuditService(repo repositories.AuditLogRepository) *AuditService {
	return &AuditService{repo: repo, now: time.Now}
}

// Record appends one audit entry. details is marshalled to JSON; an entry that
// cannot be written is logged and reported but never rolls back the action.
// A nil service records nothing.
func (s *AuditService) Record(ctx context.Context, adminID string, action entities.AuditAction, targetType, targetID string, details interface{}) error {
	if s == nil {
		return nil
	}
	entry := &entities.AuditLog{
		ID:         uuid.NewString(),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		AdminID:    adminID,
		CreatedAt:  s.now(),
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		entry.Details = raw
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("action", string(action)).
			Str("target_type", targetType).
			Str("target_id", targetID).
			Msg("failed to write audit log")
		return err
	}
	return nil
}

// List returns audit entries, newest first
func (s *AuditService) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, error) {
	return s.repo.List(ctx, filter)
}
