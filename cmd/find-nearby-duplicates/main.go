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
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/dedup"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/bootstrap"
)

func main() {
	var radius float64
	flag.Float64Var(&radius, "radius", 100, "report pairs closer than this many meters")
	flag.Parse()

	if err := run(radius); err != nil {
		if bootstrap.Interrupted(err) {
			fmt.Println("Aborted.")
			return
		}
		log.Error().Err(err).Msg("nearby duplicate report failed")
		os.Exit(1)
	}
}

func run(radius float64) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Open(ctx, bootstrap.Options{Service: "find-nearby-duplicates", BatchLogging: true})
	if err != nil {
		return err
	}
	defer env.Close()

	repo := database.NewFacilityAdapter(env.Postgres)
	facilities, err := services.NewFacilitySnapshotService(repo, env.Config.Batch.PageSize).FetchAll(ctx)
	if err != nil {
		return err
	}

	dedup.PrintNearby(os.Stdout, dedup.FindNearby(facilities, radius), radius)
	return nil
}
