package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/database"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/bootstrap"
)

const usage = `usage:
  facility-csv export [-o facilities.csv]
  facility-csv import <file.csv>`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		out := fs.String("o", "", "output file (default stdout)")
		_ = fs.Parse(os.Args[2:])
		err = runExport(*out)
	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = runImport(fs.Arg(0))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if bootstrap.Interrupted(err) {
		fmt.Fprintln(os.Stderr, "Aborted.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("facility-csv failed")
		os.Exit(1)
	}
}

// open connects to Postgres and, for imports, to the search index so written
// rows stay searchable.
func open(ctx context.Context, withSearch bool) (*bootstrap.Env, *services.FacilityCSVService, error) {
	env, err := bootstrap.Open(ctx, bootstrap.Options{
		Service:       "facility-csv",
		BatchLogging:  true,
		WithTypesense: withSearch,
	})
	if err != nil {
		return nil, nil, err
	}
	repo := database.NewFacilityAdapter(env.Postgres)
	return env, services.NewFacilityCSVService(repo, env.SearchRepo(), env.Config.Batch.PageSize, env.Metrics), nil
}

func runExport(out string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, svc, err := open(ctx, false)
	if err != nil {
		return err
	}
	defer env.Close()

	var w io.Writer = os.Stdout
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer file.Close()
		w = file
	}

	n, err := svc.Export(ctx, w)
	if err != nil {
		return err
	}
	log.Info().Int("rows", n).Str("file", out).Msg("export finished")
	return nil
}

func runImport(path string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	env, svc, err := open(ctx, true)
	if err != nil {
		return err
	}
	defer env.Close()

	result, err := svc.Import(ctx, file)
	if err != nil {
		return err
	}

	fmt.Printf("Inserted: %d\nUpdated:  %d\nTotal:    %d\n", result.Inserted, result.Updated, result.Total)
	if len(result.ParseErrors) > 0 || len(result.DBErrors) > 0 {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		fmt.Printf("\nParse errors: %d, DB errors: %d\n", len(result.ParseErrors), len(result.DBErrors))
		if err := enc.Encode(map[string]interface{}{
			"parse_errors": result.ParseErrors,
			"db_errors":    result.DBErrors,
		}); err != nil {
			return err
		}
	}
	return nil
}
