package repositories

import (
	"context"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
)

// AuditLogRepository is append-only: there is no update or delete
type AuditLogRepository interface {
	Append(ctx context.Context, entry *entities.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter) ([]*entities.AuditLog, error)
}

// AuditLogFilter narrows audit log listings. Results are newest first.
type AuditLogFilter struct {
	TargetType string
	TargetID   string
	Limit      int
	Offset     int
}
