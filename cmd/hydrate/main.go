package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"evalserver/internal/hydrate"
	"evalserver/internal/infra"
)

func main() {
	var (
		templateFlag string
		outputFlag   string
		dryRun       bool
	)
	flag.StringVar(&templateFlag, "template", "eval/dataset_template.yaml", "Template file with {{COLUMN|format}} placeholders")
	flag.StringVar(&outputFlag, "output", "", "Output file (defaults to template path without the _template suffix)")
	flag.BoolVar(&dryRun, "dry-run", false, "Print hydrated cases to stdout instead of writing the file")
	flag.Parse()

	_ = godotenv.Load()
	logger := infra.NewLogger(os.Getenv("APP_ENV"))

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	output := outputFlag
	if output == "" {
		output = strings.Replace(templateFlag, "_template", "", 1)
		if output == templateFlag {
			fmt.Fprintln(os.Stderr, "cannot derive output path, pass -output")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	h := &hydrate.Hydrator{
		DB:     &hydrate.SQLQuerier{SQL: infra.NewSQLRunner(pool, logger)},
		Logger: logger,
	}

	cases, err := h.HydrateFile(ctx, templateFlag)
	if err != nil {
		logger.Fatal().Err(err).Str("template", templateFlag).Msg("hydration failed")
	}

	if dryRun {
		for i, c := range cases {
			fmt.Printf("--- case %d ---\n%s\n%s\n", i+1, c.Question, c.ExpectedOutcome)
		}
		return
	}

	if err := hydrate.WriteOutput(output, cases); err != nil {
		logger.Fatal().Err(err).Str("output", output).Msg("failed to write hydrated file")
	}
	logger.Info().Int("cases", len(cases)).Str("output", output).Msg("dataset hydrated")
}
