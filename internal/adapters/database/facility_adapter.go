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

const facilitiesTable = "facilities"

var facilityColumns = []interface{}{
	"id", "name", "name_kana", "address", "area", "category", "lat", "lng",
	"place_id", "google_maps_url", "phone", "is_verified", "created_by",
	"created_at", "updated_at",
}

// FacilityAdapter implements the FacilityRepository interface
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
		db:     newDialect(client),
	}
}

// Create inserts a new facility
func (a *FacilityAdapter) Create(ctx context.Context, facility *entities.Facility) error {
	if facility == nil {
		return apperrors.NewValidationError("facility is nil")
	}

	record := facilityRecord(facility)
	record["id"] = facility.ID
	record["created_at"] = facility.CreatedAt

	query, args, err := a.db.Insert(facilitiesTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build facility insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create facility", err)
	}
	return nil
}

// GetByID retrieves a facility by ID regardless of verification
func (a *FacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	query, args, err := a.db.From(facilitiesTable).Prepared(true).
		Select(facilityColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}
	return facility, nil
}

// Update overwrites a facility's mutable fields
func (a *FacilityAdapter) Update(ctx context.Context, facility *entities.Facility) error {
	facility.UpdatedAt = time.Now()

	query, args, err := a.db.Update(facilitiesTable).Prepared(true).
		Set(facilityRecord(facility)).
		Where(goqu.Ex{"id": facility.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return execOne(ctx, a.client, query, args, "update facility", "facility", facility.ID)
}

// SoftDelete hides a facility by clearing is_verified
func (a *FacilityAdapter) SoftDelete(ctx context.Context, id string) error {
	query, args, err := a.db.Update(facilitiesTable).Prepared(true).
		Set(goqu.Record{"is_verified": false, "updated_at": time.Now()}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build soft delete query", err)
	}

	return execOne(ctx, a.client, query, args, "soft delete facility", "facility", id)
}

// HardDelete removes the row
func (a *FacilityAdapter) HardDelete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(facilitiesTable).Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	return execOne(ctx, a.client, query, args, "delete facility", "facility", id)
}

// List retrieves facilities with filters, newest first
func (a *FacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	ds := a.db.From(facilitiesTable).Prepared(true).Select(facilityColumns...)

	if filter.VerifiedOnly {
		ds = ds.Where(goqu.Ex{"is_verified": true})
	}
	if filter.Area != "" {
		ds = ds.Where(goqu.Ex{"area": filter.Area})
	}
	if filter.Category != "" {
		ds = ds.Where(goqu.Ex{"category": filter.Category})
	}
	if filter.Query != "" {
		pattern := likePattern(filter.Query)
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("name_kana").ILike(pattern),
			goqu.C("address").ILike(pattern),
		))
	}

	ds = ds.Order(goqu.I("created_at").Desc(), goqu.I("id").Asc()).
		Limit(uint(clampLimit(filter.Limit, 50, 1000)))
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.queryFacilities(ctx, query, args, "list facilities")
}

// ListPage returns one page ordered by created_at ascending, id ascending
func (a *FacilityAdapter) ListPage(ctx context.Context, offset, limit int) ([]*entities.Facility, error) {
	if limit <= 0 {
		return nil, apperrors.NewValidationError("page limit must be positive")
	}

	query, args, err := a.db.From(facilitiesTable).Prepared(true).
		Select(facilityColumns...).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.queryFacilities(ctx, query, args, "page facilities")
}

// ListPlaceIDs returns every non-empty external place id
func (a *FacilityAdapter) ListPlaceIDs(ctx context.Context) ([]string, error) {
	query, args, err := a.db.From(facilitiesTable).Prepared(true).
		Select("place_id").
		Where(goqu.C("place_id").IsNotNull(), goqu.C("place_id").Neq("")).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list place ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan place id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating place ids", err)
	}
	return ids, nil
}

// Count returns the number of facilities
func (a *FacilityAdapter) Count(ctx context.Context, verifiedOnly bool) (int, error) {
	ds := a.db.From(facilitiesTable).Prepared(true).Select(goqu.COUNT(goqu.Star()))
	if verifiedOnly {
		ds = ds.Where(goqu.Ex{"is_verified": true})
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var n int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperrors.NewInternalError("failed to count facilities", err)
	}
	return n, nil
}

// CountByArea groups verified facilities by area
func (a *FacilityAdapter) CountByArea(ctx context.Context) (map[string]int, error) {
	query, args, err := a.db.From(facilitiesTable).Prepared(true).
		Select(goqu.C("area"), goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{"is_verified": true}).
		GroupBy("area").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build count query", err)
	}
	return queryCounts(ctx, a.client, query, args, "count facilities by area")
}

func (a *FacilityAdapter) queryFacilities(ctx context.Context, query string, args []interface{}, op string) ([]*entities.Facility, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to "+op, err)
	}
	defer rows.Close()

	facilities := []*entities.Facility{}
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating facilities", err)
	}
	return facilities, nil
}

// facilityRecord holds the columns written by both insert and update
func facilityRecord(f *entities.Facility) goqu.Record {
	createdBy := f.CreatedBy
	if createdBy == "" {
		createdBy = entities.FacilityCreatorAdmin
	}
	return goqu.Record{
		"name":            f.Name,
		"name_kana":       nullString(f.NameKana),
		"address":         f.Address,
		"area":            f.Area,
		"category":        f.Category,
		"lat":             nullFloat(f.Latitude),
		"lng":             nullFloat(f.Longitude),
		"place_id":        nullString(f.PlaceID),
		"google_maps_url": nullString(f.GoogleMapsURL),
		"phone":           nullString(f.Phone),
		"is_verified":     f.IsVerified,
		"created_by":      string(createdBy),
		"updated_at":      f.UpdatedAt,
	}
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	f := &entities.Facility{}
	var nameKana, placeID, mapsURL, phone sql.NullString
	var lat, lng sql.NullFloat64
	var createdBy string

	err := row.Scan(
		&f.ID,
		&f.Name,
		&nameKana,
		&f.Address,
		&f.Area,
		&f.Category,
		&lat,
		&lng,
		&placeID,
		&mapsURL,
		&phone,
		&f.IsVerified,
		&createdBy,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.NameKana = nameKana.String
	f.PlaceID = placeID.String
	f.GoogleMapsURL = mapsURL.String
	f.Phone = phone.String
	f.Latitude = floatPtr(lat)
	f.Longitude = floatPtr(lng)
	f.CreatedBy = entities.FacilityCreator(createdBy)
	return f, nil
}

func queryCounts(ctx context.Context, client *postgres.Client, query string, args []interface{}, op string) (map[string]int, error) {
	rows, err := client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to "+op, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key sql.NullString
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, apperrors.NewInternalError("failed to scan count", err)
		}
		counts[key.String] += n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating counts", err)
	}
	return counts, nil
}
