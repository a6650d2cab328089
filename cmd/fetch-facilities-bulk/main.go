package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/database"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/providers/places"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/bootstrap"
)

func main() {
	var phase int
	var resume bool
	flag.IntVar(&phase, "phase", services.PhaseCore, "1 = core towns, 2 = outlying areas, 3 = all")
	flag.BoolVar(&resume, "resume", false, "continue from the saved checkpoint")
	flag.Parse()

	if err := run(phase, resume); err != nil {
		log.Error().Err(err).Msg("bulk fetch failed")
		os.Exit(1)
	}
}

func run(phase int, resume bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Open(ctx, bootstrap.Options{
		Service:       "fetch-facilities-bulk",
		BatchLogging:  true,
		WithRedis:     true,
		WithTypesense: true,
	})
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := env.Config
	if err := cfg.ValidatePlaces(); err != nil {
		return err
	}

	provider := places.NewGoogleProvider(cfg.Places.APIKey, env.Cache("kc"), places.Options{
		Language: cfg.Places.Language,
		Region:   cfg.Places.Region,
	})

	svc := services.NewBulkIngestionService(
		database.NewFacilityAdapter(env.Postgres),
		provider,
		env.SearchRepo(),
		services.IngestionConfig{
			Catalog:      services.DefaultIngestionCatalog,
			Checkpoint:   services.NewCheckpointStore(cfg.Batch.CheckpointFile),
			ErrorLogPath: cfg.Batch.ErrorLogFile,
			RequestDelay: cfg.Places.RequestDelay,
			InsertDelay:  cfg.Batch.InsertDelay,
			Metrics:      env.Metrics,
		},
	)

	progress, err := svc.Run(ctx, services.IngestionOptions{Phase: phase, Resume: resume})
	if progress != nil {
		fmt.Printf("Processed:  %d\nInserted:   %d\nDuplicates: %d\nErrors:     %d\n",
			progress.TotalProcessed, progress.TotalInserted, progress.TotalDuplicates, progress.TotalErrors)
	}
	if bootstrap.Interrupted(err) {
		fmt.Printf("Interrupted. Run again with --resume to continue from %s\n", cfg.Batch.CheckpointFile)
		return nil
	}
	return err
}
