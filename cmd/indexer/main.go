package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/database"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/search"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/bootstrap"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the facilities collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	if err := run(reset, intervalFlag); err != nil {
		log.Error().Err(err).Msg("indexer failed")
		os.Exit(1)
	}
}

func run(reset bool, intervalFlag string) error {
	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		var err error
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", intervalValue, err)
		}
		if interval <= 0 {
			return errors.New("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Open(ctx, bootstrap.Options{
		Service:       "indexer",
		BatchLogging:  true,
		WithTypesense: true,
	})
	if err != nil {
		return err
	}
	defer env.Close()

	if env.Typesense == nil {
		return errors.New("TYPESENSE_URL is required and the server must be reachable")
	}

	for {
		if err := indexOnce(ctx, env, reset); err != nil {
			if interval <= 0 {
				return err
			}
			log.Error().Err(err).Msg("reindex failed")
		}
		if interval <= 0 {
			return nil
		}

		reset = false
		log.Info().Dur("interval", interval).Msg("reindex complete, waiting for next run")

		select {
		case <-ctx.Done():
			log.Info().Msg("indexer shutting down")
			return nil
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, env *bootstrap.Env, reset bool) error {
	if reset {
		log.Info().Msg("dropping facilities collection")
		if err := env.Typesense.DropSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to drop collection")
		}
		if err := env.Typesense.InitSchema(ctx); err != nil {
			return err
		}
	}

	index := search.NewTypesenseAdapter(env.Typesense)
	snapshot := services.NewFacilitySnapshotService(database.NewFacilityAdapter(env.Postgres), env.Config.Batch.PageSize)

	var indexed, removed, failed int
	err := snapshot.Each(ctx, func(page []*entities.Facility) error {
		for _, f := range page {
			// soft-deleted rows leave the index instead of being filtered at query time
			if !f.IsVerified {
				if err := index.Delete(ctx, f.ID); err == nil {
					removed++
				}
				continue
			}
			if err := index.Index(ctx, f); err != nil {
				failed++
				log.Warn().Err(err).Str("facility_id", f.ID).Msg("failed to index facility")
				continue
			}
			indexed++
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("indexed", indexed).Int("removed", removed).Int("failed", failed).Msg("indexing complete")
	return nil
}
