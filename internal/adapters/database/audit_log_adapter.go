package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

const auditLogsTable = "audit_logs"

// AuditLogAdapter implements AuditLogRepository
type AuditLogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	dbx    *sqlx.DB
}

type auditLogRow struct {
	ID         string    `db:"id"`
	Action     string    `db:"action"`
	TargetType string    `db:"target_type"`
	TargetID   string    `db:"target_id"`
	Details    []byte    `db:"details"`
	AdminID    string    `db:"admin_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// NewAuditLogAdapter creates a new audit log adapter
func NewAuditLogAdapter(client *postgres.Client) repositories.AuditLogRepository {
	return &AuditLogAdapter{
		client: client,
		db:     newDialect(client),
		dbx:    sqlx.NewDb(client.DB(), "postgres"),
	}
}

func (a *AuditLogAdapter) Append(ctx context.Context, entry *entities.AuditLog) error {
	details := []byte(entry.Details)
	if len(details) == 0 {
		details = []byte("{}")
	}

	query, args, err := a.db.Insert(auditLogsTable).Prepared(true).Rows(goqu.Record{
		"id":          entry.ID,
		"action":      string(entry.Action),
		"target_type": entry.TargetType,
		"target_id":   entry.TargetID,
		"details":     string(details),
		"admin_id":    entry.AdminID,
		"created_at":  entry.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build audit log insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to append audit log", err)
	}
	return nil
}

func (a *AuditLogAdapter) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, error) {
	ds := a.db.From(auditLogsTable).Prepared(true).
		Select("id", "action", "target_type", "target_id", "details", "admin_id", "created_at")
	if filter.TargetType != "" {
		ds = ds.Where(goqu.Ex{"target_type": filter.TargetType})
	}
	if filter.TargetID != "" {
		ds = ds.Where(goqu.Ex{"target_id": filter.TargetID})
	}
	ds = ds.Order(goqu.I("created_at").Desc()).Limit(uint(clampLimit(filter.Limit, 50, 500)))
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []auditLogRow
	if err := a.dbx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list audit logs", err)
	}

	entries := make([]*entities.AuditLog, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, &entities.AuditLog{
			ID:         r.ID,
			Action:     entities.AuditAction(r.Action),
			TargetType: r.TargetType,
			TargetID:   r.TargetID,
			Details:    json.RawMessage(r.Details),
			AdminID:    r.AdminID,
			CreatedAt:  r.CreatedAt,
		})
	}
	return entries, nil
}
