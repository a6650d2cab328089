package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/database"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/dedup"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/bootstrap"
)

func main() {
	var execute bool
	var backupDir string
	flag.BoolVar(&execute, "execute", false, "delete duplicates instead of reporting them")
	flag.StringVar(&backupDir, "backup-dir", "", "directory for the pre-run backup (default BACKUP_DIR)")
	flag.Parse()

	if err := run(execute, backupDir); err != nil {
		if bootstrap.Interrupted(err) {
			fmt.Println("Aborted before any deletion.")
			return
		}
		log.Error().Err(err).Msg("dedup failed")
		os.Exit(1)
	}
}

func run(execute bool, backupDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Open(ctx, bootstrap.Options{
		Service:       "dedup-facilities",
		BatchLogging:  true,
		WithTypesense: true,
	})
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := env.Config
	if backupDir == "" {
		backupDir = cfg.Batch.BackupDir
	}

	repo := database.NewFacilityAdapter(env.Postgres)
	facilities, err := services.NewFacilitySnapshotService(repo, cfg.Batch.PageSize).FetchAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Fetched %d facilities\n", len(facilities))

	path, err := services.WriteBackupFile(backupDir, "facilities-backup", time.Now(), facilities)
	if err != nil {
		return err
	}
	fmt.Printf("Backup written to %s\n\n", path)

	result := dedup.Detect(facilities)
	dedup.PrintReport(os.Stdout, result)

	mode := dedup.DryRun
	if execute {
		mode = dedup.Execute
	}
	execCfg := dedup.ExecutorConfig{
		Mode:      mode,
		Countdown: cfg.Batch.Countdown,
		Delay:     cfg.Batch.DeleteDelay,
		Metrics:   env.Metrics,
		OnCountdown: func(remaining time.Duration) {
			fmt.Printf("Deleting %d rows in %ds... (Ctrl+C to abort)\n", len(result.DeleteIDs), int(remaining.Seconds()))
		},
		OnProgress: func(p dedup.Progress) {
			if p.Err != nil {
				fmt.Printf("  [%d/%d] %s failed: %v\n", p.Done, p.Total, p.ID, p.Err)
				return
			}
			fmt.Printf("  [%d/%d] %s deleted\n", p.Done, p.Total, p.ID)
		},
	}
	if searchRepo := env.SearchRepo(); searchRepo != nil {
		execCfg.Index = searchRepo
	}

	res, err := dedup.NewExecutor(repo, execCfg).Execute(ctx, result.DeleteIDs)
	if res != nil {
		dedup.PrintExecution(os.Stdout, res)
	}
	if bootstrap.Interrupted(err) {
		fmt.Println("Aborted. Rows not yet deleted were left in place; the backup above is complete.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting duplicates: %w", err)
	}
	return nil
}
