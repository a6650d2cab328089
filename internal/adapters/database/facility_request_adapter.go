package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

const facilityRequestsTable = "facility_requests"

var facilityRequestColumns = []interface{}{
	"id", "name", "address", "area", "category", "requester_name",
	"requester_email", "status", "admin_note", "created_at", "updated_at",
}

// FacilityRequestAdapter implements FacilityRequestRepository
type FacilityRequestAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFacilityRequestAdapter creates a new facility request adapter
func NewFacilityRequestAdapter(client *postgres.Client) repositories.FacilityRequestRepository {
	return &FacilityRequestAdapter{client: client, db: newDialect(client)}
}

func (a *FacilityRequestAdapter) Create(ctx context.Context, req *entities.FacilityRequest) error {
	query, args, err := a.db.Insert(facilityRequestsTable).Prepared(true).Rows(goqu.Record{
		"id":              req.ID,
		"name":            req.Name,
		"address":         req.Address,
		"area":            req.Area,
		"category":        req.Category,
		"requester_name":  nullString(req.RequesterName),
		"requester_email": nullString(req.RequesterEmail),
		"status":          string(req.Status),
		"admin_note":      nullString(req.AdminNote),
		"created_at":      req.CreatedAt,
		"updated_at":      req.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build facility request insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create facility request", err)
	}
	return nil
}

func (a *FacilityRequestAdapter) GetByID(ctx context.Context, id string) (*entities.FacilityRequest, error) {
	query, args, err := a.db.From(facilityRequestsTable).Prepared(true).
		Select(facilityRequestColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	req, err := scanFacilityRequest(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility request with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility request", err)
	}
	return req, nil
}

// List returns requests newest first. An empty status lists all of them.
func (a *FacilityRequestAdapter) List(ctx context.Context, status entities.FacilityRequestStatus, limit, offset int) ([]*entities.FacilityRequest, error) {
	ds := a.db.From(facilityRequestsTable).Prepared(true).Select(facilityRequestColumns...)
	if status != "" {
		ds = ds.Where(goqu.Ex{"status": string(status)})
	}
	ds = ds.Order(goqu.I("created_at").Desc()).Limit(uint(clampLimit(limit, 50, 200)))
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list facility requests", err)
	}
	defer rows.Close()

	reqs := []*entities.FacilityRequest{}
	for rows.Next() {
		req, err := scanFacilityRequest(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility request", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating facility requests", err)
	}
	return reqs, nil
}

// Resolve only touches rows still pending, so two admins racing on the same
// request cannot both win.
func (a *FacilityRequestAdapter) Resolve(ctx context.Context, id string, status entities.FacilityRequestStatus, adminNote string) error {
	query, args, err := a.db.Update(facilityRequestsTable).Prepared(true).
		Set(goqu.Record{
			"status":     string(status),
			"admin_note": nullString(adminNote),
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{"id": id, "status": string(entities.FacilityRequestPending)}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build resolve query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to resolve facility request", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if n == 0 {
		return apperrors.NewConflictError(fmt.Sprintf("facility request %s is not pending", id))
	}
	return nil
}

func (a *FacilityRequestAdapter) CountPending(ctx context.Context) (int, error) {
	query, args, err := a.db.From(facilityRequestsTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{"status": string(entities.FacilityRequestPending)}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}
	return scanCount(ctx, a.client, query, args, "count pending facility requests")
}

func scanFacilityRequest(row rowScanner) (*entities.FacilityRequest, error) {
	req := &entities.FacilityRequest{}
	var requesterName, requesterEmail, adminNote sql.NullString
	var status string

	if err := row.Scan(
		&req.ID,
		&req.Name,
		&req.Address,
		&req.Area,
		&req.Category,
		&requesterName,
		&requesterEmail,
		&status,
		&adminNote,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}

	req.RequesterName = requesterName.String
	req.RequesterEmail = requesterEmail.String
	req.AdminNote = adminNote.String
	req.Status = entities.FacilityRequestStatus(status)
	return req, nil
}
