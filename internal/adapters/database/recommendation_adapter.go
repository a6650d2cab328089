package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

const recommendationsTable = "recommendations"

var recommendationColumns = []interface{}{
	"id", "facility_id", "note", "formatted_note", "source_type", "source_detail",
	"review_category", "season", "tags", "images", "author_name", "is_anonymous",
	"ip_hash", "editable_until", "created_at", "updated_at",
}

// RecommendationAdapter implements RecommendationRepository
type RecommendationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRecommendationAdapter creates a new recommendation adapter
func NewRecommendationAdapter(client *postgres.Client) repositories.RecommendationRepository {
	return &RecommendationAdapter{client: client, db: newDialect(client)}
}

func (a *RecommendationAdapter) Create(ctx context.Context, rec *entities.Recommendation) error {
	record := recommendationRecord(rec)
	record["id"] = rec.ID
	record["facility_id"] = rec.FacilityID
	record["ip_hash"] = nullString(rec.IPHash)
	record["editable_until"] = rec.EditableUntil
	record["created_at"] = rec.CreatedAt

	query, args, err := a.db.Insert(recommendationsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build recommendation insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create recommendation", err)
	}
	return nil
}

func (a *RecommendationAdapter) GetByID(ctx context.Context, id string) (*entities.Recommendation, error) {
	query, args, err := a.db.From(recommendationsTable).Prepared(true).
		Select(recommendationColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rec, err := scanRecommendation(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("recommendation with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get recommendation", err)
	}
	return rec, nil
}

// Update rewrites the editable content. facility_id, ip_hash and the edit
// window never change after creation.
func (a *RecommendationAdapter) Update(ctx context.Context, rec *entities.Recommendation) error {
	rec.UpdatedAt = time.Now()

	query, args, err := a.db.Update(recommendationsTable).Prepared(true).
		Set(recommendationRecord(rec)).
		Where(goqu.Ex{"id": rec.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}
	return execOne(ctx, a.client, query, args, "update recommendation", "recommendation", rec.ID)
}

func (a *RecommendationAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(recommendationsTable).Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}
	return execOne(ctx, a.client, query, args, "delete recommendation", "recommendation", id)
}

func (a *RecommendationAdapter) List(ctx context.Context, filter repositories.RecommendationFilter) ([]*entities.Recommendation, error) {
	ds := a.db.From(recommendationsTable).Prepared(true).Select(recommendationColumns...)
	if filter.FacilityID != "" {
		ds = ds.Where(goqu.Ex{"facility_id": filter.FacilityID})
	}
	if filter.ReviewCategory != "" {
		ds = ds.Where(goqu.Ex{"review_category": filter.ReviewCategory})
	}
	if filter.Tag != "" {
		ds = ds.Where(goqu.L("? = ANY(tags)", filter.Tag))
	}
	ds = ds.Order(goqu.I("created_at").Desc(), goqu.I("id").Asc()).
		Limit(uint(clampLimit(filter.Limit, 20, 100)))
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list recommendations", err)
	}
	defer rows.Close()

	recs := []*entities.Recommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan recommendation", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating recommendations", err)
	}
	return recs, nil
}

// Count returns the number of recommendations, optionally only those created at or after since
func (a *RecommendationAdapter) Count(ctx context.Context, since *time.Time) (int, error) {
	ds := a.db.From(recommendationsTable).Prepared(true).Select(goqu.COUNT(goqu.Star()))
	if since != nil {
		ds = ds.Where(goqu.C("created_at").Gte(*since))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var n int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperrors.NewInternalError("failed to count recommendations", err)
	}
	return n, nil
}

func (a *RecommendationAdapter) CountByCategory(ctx context.Context) (map[string]int, error) {
	query, args, err := a.db.From(recommendationsTable).Prepared(true).
		Select(goqu.C("review_category"), goqu.COUNT(goqu.Star())).
		GroupBy("review_category").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build count query", err)
	}
	return queryCounts(ctx, a.client, query, args, "count recommendations by category")
}

func recommendationRecord(rec *entities.Recommendation) goqu.Record {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	images := rec.Images
	if images == nil {
		images = []string{}
	}
	return goqu.Record{
		"note":            rec.Note,
		"formatted_note":  rec.FormattedNote,
		"source_type":     rec.SourceType,
		"source_detail":   nullString(rec.SourceDetail),
		"review_category": string(rec.ReviewCategory),
		"season":          nullString(rec.Season),
		"tags":            pq.Array(tags),
		"images":          pq.Array(images),
		"author_name":     nullString(rec.AuthorName),
		"is_anonymous":    rec.IsAnonymous,
		"updated_at":      rec.UpdatedAt,
	}
}

func scanRecommendation(row rowScanner) (*entities.Recommendation, error) {
	rec := &entities.Recommendation{}
	var sourceDetail, season, authorName, ipHash sql.NullString
	var category string
	var tags, images pq.StringArray

	err := row.Scan(
		&rec.ID,
		&rec.FacilityID,
		&rec.Note,
		&rec.FormattedNote,
		&rec.SourceType,
		&sourceDetail,
		&category,
		&season,
		&tags,
		&images,
		&authorName,
		&rec.IsAnonymous,
		&ipHash,
		&rec.EditableUntil,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.SourceDetail = sourceDetail.String
	rec.ReviewCategory = entities.ReviewCategory(category)
	rec.Season = season.String
	rec.Tags = []string(tags)
	rec.Images = []string(images)
	rec.AuthorName = authorName.String
	rec.IPHash = ipHash.String
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.Images == nil {
		rec.Images = []string{}
	}
	return rec, nil
}
