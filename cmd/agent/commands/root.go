package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"coo-agent/internal/ai"
	"coo-agent/internal/app"
	"coo-agent/internal/config"
	"coo-agent/internal/core"
	"coo-agent/internal/db"
	"coo-agent/internal/logging"
	"coo-agent/internal/store"
)

var (
	// Version and Commit are set at build time via ldflags.
	Version = "dev"
	Commit  = "none"

	verbose bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Autonomous COO agent for small-business operations",
	Long: `Simulates a small product business, scores candidate operating actions
(restocks, pricing, marketing, invoicing) by projected ROI, tracks what
actually happened after approval, and retrains its decision policy when
predictions drift from reality.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)
		cfg = config.Load()
		log.Info().Str("version", Version).Str("commit", Commit).Msg("coo-agent starting")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// newService wires the full stack: Postgres when DATABASE_URL is set, the
// JSON file store otherwise.
func newService(ctx context.Context) (*app.Service, func(), error) {
	var (
		st      app.TaskStore
		cleanup = func() {}
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		pg := store.NewPGStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		st = pg
		cleanup = pool.Close
	} else {
		fs, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		st = fs
	}

	catalog := core.DefaultCatalog()
	source := core.NewSimulatedSource(0)
	tracker := core.NewTracker(st, source, cfg.TrackingDays, log.Logger)

	optimizer := core.NewHeuristicPolicy(catalog)
	if cfg.ModelPath != "" {
		if err := optimizer.Load(cfg.ModelPath); err != nil {
			log.Debug().Err(err).Str("path", cfg.ModelPath).Msg("no saved policy, using defaults")
		}
	}
	orchestrator := core.NewOrchestrator(st, tracker, optimizer, catalog, cfg.ModelPath, log.Logger)
	advisor := ai.NewAdvisor(cfg.OpenAIAPIKey)

	svc := app.NewService(st, catalog, optimizer, tracker, orchestrator, advisor, log.Logger)
	return svc, cleanup, nil
}
