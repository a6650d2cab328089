package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	tsclient "github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements facility search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements FacilitySearchRepository
var _ repositories.FacilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a facility document
func (a *TypesenseAdapter) Index(ctx context.Context, facility *entities.Facility) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Upsert(ctx, buildFacilityDocument(facility))
	if err != nil {
		return fmt.Errorf("failed to index facility %s: %w", facility.ID, err)
	}
	return nil
}

// Delete removes a facility from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	if _, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Document(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete facility %s from index: %w", id, err)
	}
	return nil
}

// Search returns ids of verified facilities matching the query, best match first
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]string, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(q),
		QueryBy:  pointer.String("name,name_kana,keywords,address"),
		FilterBy: pointer.String(buildFilter(params)),
		Page:     pointer.Int(params.Offset/limit + 1),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search facilities: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func buildFacilityDocument(f *entities.Facility) map[string]interface{} {
	doc := map[string]interface{}{
		"id":          f.ID,
		"name":        f.Name,
		"address":     f.Address,
		"area":        f.Area,
		"category":    f.Category,
		"is_verified": f.IsVerified,
		"keywords":    BuildKeywords(f),
		"created_at":  f.CreatedAt.Unix(),
	}
	if f.NameKana != "" {
		doc["name_kana"] = f.NameKana
	}
	if lat, lng, ok := f.Coordinates(); ok {
		doc["location"] = []float64{lat, lng}
	}
	return doc
}

func buildFilter(params repositories.SearchParams) string {
	clauses := []string{"is_verified:=true"}
	if params.Area != "" {
		clauses = append(clauses, fmt.Sprintf("area:=`%s`", escapeFilterValue(params.Area)))
	}
	if params.Category != "" {
		clauses = append(clauses, fmt.Sprintf("category:=`%s`", escapeFilterValue(params.Category)))
	}
	return strings.Join(clauses, " && ")
}

// escapeFilterValue strips backticks, which would close the quoted value early
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "`", "")
}
