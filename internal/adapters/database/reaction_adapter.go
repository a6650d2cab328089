package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

const reactionsTable = "reactions"

// uniqueViolation is the postgres error code for unique_violation
const uniqueViolation = "23505"

// ReactionAdapter implements ReactionRepository
type ReactionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReactionAdapter creates a new reaction adapter
func NewReactionAdapter(client *postgres.Client) repositories.ReactionRepository {
	return &ReactionAdapter{client: client, db: newDialect(client)}
}

// Create inserts a reaction. The (recommendation_id, reaction_type,
// user_identifier) unique index turns a double click into a conflict.
func (a *ReactionAdapter) Create(ctx context.Context, reaction *entities.Reaction) error {
	query, args, err := a.db.Insert(reactionsTable).Prepared(true).Rows(goqu.Record{
		"id":                reaction.ID,
		"recommendation_id": reaction.RecommendationID,
		"reaction_type":     string(reaction.ReactionType),
		"user_identifier":   reaction.UserIdentifier,
		"created_at":        reaction.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build reaction insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return apperrors.NewConflictError("reaction already exists")
		}
		return apperrors.NewInternalError("failed to create reaction", err)
	}
	return nil
}

func (a *ReactionAdapter) Find(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.Reaction, error) {
	query, args, err := a.db.From(reactionsTable).Prepared(true).
		Select("id", "recommendation_id", "reaction_type", "user_identifier", "created_at").
		Where(goqu.Ex{
			"recommendation_id": recommendationID,
			"reaction_type":     string(reactionType),
			"user_identifier":   userIdentifier,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	r := &entities.Reaction{}
	var rt string
	err = a.client.DB().QueryRowContext(ctx, query, args...).
		Scan(&r.ID, &r.RecommendationID, &rt, &r.UserIdentifier, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("reaction not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find reaction", err)
	}
	r.ReactionType = entities.ReactionType(rt)
	return r, nil
}

func (a *ReactionAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(reactionsTable).Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}
	return execOne(ctx, a.client, query, args, "delete reaction", "reaction", id)
}

func (a *ReactionAdapter) CountByRecommendation(ctx context.Context, recommendationID string, reactionType entities.ReactionType) (int, error) {
	query, args, err := a.db.From(reactionsTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{"recommendation_id": recommendationID, "reaction_type": string(reactionType)}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}
	return scanCount(ctx, a.client, query, args, "count reactions")
}

func (a *ReactionAdapter) Count(ctx context.Context) (int, error) {
	query, args, err := a.db.From(reactionsTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}
	return scanCount(ctx, a.client, query, args, "count reactions")
}

func scanCount(ctx context.Context, client *postgres.Client, query string, args []interface{}, op string) (int, error) {
	var n int
	if err := client.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperrors.NewInternalError("failed to "+op, err)
	}
	return n, nil
}

// execOne runs a statement that must touch exactly one row
func execOne(ctx context.Context, client *postgres.Client, query string, args []interface{}, op, kind, id string) error {
	result, err := client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to "+op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s with id %s not found", kind, id))
	}
	return nil
}
