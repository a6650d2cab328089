package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/config"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/retry"
)

const (
	FacilitiesCollection = "facilities"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client, retrying the health check with backoff
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxTotalTimeout = 20 * time.Second
	retryConfig.OnRetry = func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("Typesense connection attempt failed")
	}
	err := retry.Do(context.Background(), retryConfig, "Typesense", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ok, err := client.Health(ctx, 2*time.Second)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("typesense reported unhealthy")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// NewClientFromTypesense wraps an existing client without a health check
func NewClientFromTypesense(client *typesense.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// FacilitySchema is the collection layout for facility documents
func FacilitySchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: FacilitiesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string", Locale: pointer.String("ja")},
			{Name: "name_kana", Type: "string", Optional: pointer.True(), Locale: pointer.String("ja")},
			{Name: "address", Type: "string", Locale: pointer.String("ja")},
			{Name: "area", Type: "string", Facet: pointer.True()},
			{Name: "category", Type: "string", Facet: pointer.True()},
			{Name: "is_verified", Type: "bool"},
			{Name: "location", Type: "geopoint", Optional: pointer.True()},
			{Name: "keywords", Type: "string[]", Optional: pointer.True()},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
}

// InitSchema ensures the facilities collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == FacilitiesCollection {
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, FacilitySchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", FacilitiesCollection).Msg("created Typesense collection")
	return nil
}

// DropSchema deletes the facilities collection
func (c *Client) DropSchema(ctx context.Context) error {
	if _, err := c.client.Collection(FacilitiesCollection).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}
