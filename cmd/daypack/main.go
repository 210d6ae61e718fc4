package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	_ "time/tzdata" // --time-zone must resolve even without a system zone database

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daypack/daypack/internal/app"
	"github.com/daypack/daypack/internal/runlog"
	"github.com/daypack/daypack/internal/todoist"
)

const defaultFilter = "!assigned to:others & !no date & !recurring & no deadline"

func main() {
	// Load env
	_ = godotenv.Load(".env")

	var (
		opts  app.Options
		token string
	)
	root := &cobra.Command{
		Use:           "daypack",
		Short:         "Optimally reschedule your Todoist tasks according to your filters and rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), token, opts)
		},
	}
	root.Flags().StringVar(&opts.Filter, "filter", defaultFilter, "Todoist filter query selecting the tasks to plan")
	root.Flags().StringVar(&opts.Rules, "rules", "", "path to the rules JSON file")
	root.Flags().BoolVar(&opts.DryRun, "dry-run", false, "plan and journal without updating any task")
	root.Flags().StringVar(&token, "token", os.Getenv("TODOIST_USER_TOKEN"), "Todoist user token (defaults to $TODOIST_USER_TOKEN)")
	root.Flags().StringVar(&opts.TimeZone, "time-zone", "Etc/UTC", "IANA time zone the planning day is anchored in")
	root.Flags().StringVar(&opts.Schedule, "schedule", "", "cron expression; keeps running and replans on every firing")

	// Context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\ndaypack: shutting down")
		cancel()
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
	cancel()
}

func run(ctx context.Context, token string, opts app.Options) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if os.Getenv("DEBUG") != "" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	// Run journals live next to the rest of the user's cached state
	home, _ := os.UserHomeDir()
	journal := runlog.NewRegistry(filepath.Join(home, ".cache", "daypack", "runs"), log)

	api := todoist.New(token, log)
	a, err := app.New(api, journal, log, opts)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
