package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"videogen/internal/domain"
	"videogen/internal/infra"
	"videogen/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag   string
		envFlag   string
		clearFlag bool
	)
	flag.StringVar(&keyFlag, "key", "", "Runway API key (falls back to RUNWAY_API_KEY)")
	flag.StringVar(&envFlag, "env", "", "Environment label stored alongside the key, e.g. dev or prod")
	flag.BoolVar(&clearFlag, "clear", false, "Remove the stored key so services fall back to RUNWAY_API_KEY")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" && !clearFlag {
		key = strings.TrimSpace(os.Getenv("RUNWAY_API_KEY"))
	}
	if key == "" && !clearFlag {
		fmt.Fprintln(os.Stderr, "Runway API key is required via -key or RUNWAY_API_KEY")
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "runwaykey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if clearFlag {
		switch err := store.DeleteRunwayAPIKey(ctx); {
		case errors.Is(err, domain.ErrNotFound):
			fmt.Println("no stored RUNWAY API key")
		case err != nil:
			fmt.Fprintf(os.Stderr, "failed to remove runway api key: %v\n", err)
			os.Exit(1)
		default:
			fmt.Println("RUNWAY API key removed")
		}
		return
	}

	props := map[string]any{"source": "cli"}
	if env := strings.TrimSpace(envFlag); env != "" {
		props["env"] = env
	}
	if err := store.SetRunwayAPIKey(ctx, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist runway api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RUNWAY API key stored successfully")
}
