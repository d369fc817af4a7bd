// Command bmnews discovers biomedical preprints, scores them against a reader
// profile, and delivers email digests of the best new papers.
package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"BioMedNews/internal/app"
	"BioMedNews/internal/config"
	"BioMedNews/internal/logging"
)

var (
	cfgFile string
	verbose bool

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bmnews",
	Short: "Biomedical preprint discovery and delivery",
	Long: `bmnews pulls fresh preprints from medRxiv, bioRxiv, Europe PMC, and any
configured RSS feeds, scores them against a reader profile, and delivers an
email digest of the best new papers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(cfgFile)
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger = logging.New(cfg.Logging.Level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (default ~/.bmnews/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// openApp builds the application and ensures the schema exists, so every
// command can assume a usable store.
func openApp(ctx context.Context) (*app.Application, error) {
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := application.Store.Init(ctx); err != nil {
		_ = application.Close()
		return nil, err
	}
	return application, nil
}
