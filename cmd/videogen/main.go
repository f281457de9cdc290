// Command videogen generates Runway clips from the terminal and keeps a local
// SQLite history of every run.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"videogen/internal/adapter/repo"
	"videogen/internal/domain"
	"videogen/internal/imageprep"
	"videogen/internal/infra"
	videoprovider "videogen/internal/providers/video"
)

const usage = `usage: videogen <command> [flags]

commands:
  generate   submit one clip, wait for it and download the MP4
  history    list runs recorded in the local history database
  catalog    list models, durations and aspect ratios

run "videogen <command> -h" for command flags
`

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "videogen: %v\n", err)
		return 1
	}
	app, err := newCLI(cfg, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "videogen: %v\n", err)
		return 1
	}

	switch args[0] {
	case "generate":
		return app.generate(ctx, args[1:])
	case "history":
		return app.history(ctx, args[1:])
	case "catalog":
		return app.catalog(args[1:])
	default:
		fmt.Fprintf(stderr, "videogen: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

// historyStore is the slice of the job repository the CLI records into.
type historyStore interface {
	domain.JobRepository
	Close() error
}

type cli struct {
	cfg          *infra.Config
	modelCatalog *domain.Catalog
	policy       imageprep.Policy
	stdout       io.Writer
	stderr       io.Writer
	tty          bool

	newID        func() string
	newLogger    func(verbose bool) infra.Logger
	openHistory  func(ctx context.Context) (historyStore, error)
	newGenerator func(ctx context.Context, opts generatorOptions) (videoprovider.Generator, error)
}

func newCLI(cfg *infra.Config, stdout, stderr io.Writer) (*cli, error) {
	policy, err := imageprep.PolicyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	c := &cli{
		cfg:          cfg,
		modelCatalog: domain.DefaultCatalog(),
		policy:       policy,
		stdout:       stdout,
		stderr:       stderr,
		tty:          isTerminal(stdout),
		newID:        uuid.NewString,
		newLogger:    infra.NewCLILogger,
	}
	c.openHistory = func(ctx context.Context) (historyStore, error) {
		history, err := repo.OpenSQLiteHistory(ctx, cfg.HistoryDBPath)
		if err != nil {
			return nil, err
		}
		return history, nil
	}
	c.newGenerator = c.runwayGenerator
	return c, nil
}
