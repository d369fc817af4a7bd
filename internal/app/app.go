// Package app assembles configuration into the running application graph.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"BioMedNews/internal/config"
	"BioMedNews/internal/digest"
	"BioMedNews/internal/domain"
	"BioMedNews/internal/fetch"
	"BioMedNews/internal/llm"
	"BioMedNews/internal/logging"
	"BioMedNews/internal/ports"
	"BioMedNews/internal/scheduler"
	"BioMedNews/internal/scoring"
	"BioMedNews/internal/server"
	"BioMedNews/internal/storage"
	"BioMedNews/internal/usecase"
)

// Application wires configuration to the pipeline, HTTP API, and scheduler.
// The store connection stays open until Close.
type Application struct {
	Config    config.Config
	Logger    *slog.Logger
	Store     ports.PaperStore
	Sources   []ports.PaperSource
	Pipeline  *usecase.Pipeline
	Scheduler *usecase.Scheduler
	Server    *server.Server
}

// New builds the full application from configuration. A nil baseLogger gets
// replaced by one honoring the configured log level.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := openStore(ctx, cfg.Database, baseLogger)
	if err != nil {
		return nil, err
	}

	var (
		chat     ports.ChatClient
		embedder ports.Embedder
	)
	if cfg.LLM.APIKey != "" {
		client := llm.NewClient(cfg.LLM, storage.EmbeddingDim)
		chat = client
		embedder = client
	}

	relevance := buildRelevanceScorer(cfg.Scoring.Scorer, chat, embedder, baseLogger)
	assessor := scoring.NewTieredAssessor(chat, baseLogger.With("component", "quality"))
	batch := scoring.NewBatchScorer(store, relevance, assessor, baseLogger.With("component", "scoring"))

	sources, err := buildSources(cfg.Sources, baseLogger)
	if err != nil {
		store.Close()
		return nil, err
	}

	var mailer ports.DigestSender
	if cfg.SMTP.Host != "" {
		mailer = digest.NewSMTPSender(digest.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			UseTLS:   cfg.SMTP.UseTLS,
		}, baseLogger.With("component", "smtp"))
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Store:    store,
		Sources:  sources,
		Scorer:   batch,
		Renderer: digest.NewRenderer(cfg.Digest.SubjectPrefix),
		Mailer:   mailer,
		Printer:  digest.NewStdoutSender(),
		Profile: domain.Profile{
			Name:         cfg.Profile.Name,
			Email:        cfg.Profile.Email,
			Interests:    cfg.Profile.Interests,
			MinRelevance: cfg.Scoring.MinRelevance,
			MinQuality:   cfg.Scoring.MinQuality,
		},
		Options: usecase.Options{
			LookbackDays:   cfg.Sources.LookbackDays,
			UnscoredLimit:  cfg.Scoring.UnscoredLimit,
			Concurrency:    cfg.Scoring.Concurrency,
			MaxQualityTier: cfg.Scoring.MaxQualityTier,
			MinRelevance:   cfg.Scoring.MinRelevance,
			MinQuality:     cfg.Scoring.MinQuality,
			DigestLimit:    cfg.Digest.Limit,
		},
		Logger: baseLogger.With("component", "pipeline"),
	})

	cron := scheduler.New(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	sched := usecase.NewScheduler(cron, pipeline, baseLogger.With("component", "scheduler"))
	srv := server.New(cfg.Server.Addr, store, pipeline, baseLogger.With("component", "server"))

	return &Application{
		Config:    cfg,
		Logger:    baseLogger,
		Store:     store,
		Sources:   sources,
		Pipeline:  pipeline,
		Scheduler: sched,
		Server:    srv,
	}, nil
}

// Close releases the store connection.
func (a *Application) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (ports.PaperStore, error) {
	switch cfg.Backend {
	case "postgres":
		store, err := storage.NewPostgres(ctx, cfg.Postgres.DSN, logger.With("component", "storage"))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case "", "sqlite":
		store, err := storage.NewSQLite(cfg.SQLite.Path, logger.With("component", "storage"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

// buildRelevanceScorer resolves the configured strategy. The agent strategy
// needs a chat client; without one it degrades to keyword matching so runs
// still produce usable scores.
func buildRelevanceScorer(strategy string, chat ports.ChatClient, embedder ports.Embedder, logger *slog.Logger) ports.RelevanceScorer {
	switch strategy {
	case "agent":
		if chat == nil {
			logger.Warn("agent scorer configured without llm credentials, using keyword scorer")
			return scoring.NewKeywordScorer()
		}
		return scoring.NewAgentScorer(chat, embedder, logger.With("component", "relevance"))
	case "", "keyword":
		return scoring.NewKeywordScorer()
	default:
		logger.Warn("unknown scorer strategy, using keyword scorer", "strategy", strategy)
		return scoring.NewKeywordScorer()
	}
}

func buildSources(cfg config.SourcesConfig, logger *slog.Logger) ([]ports.PaperSource, error) {
	registry := fetch.NewRegistry()

	if cfg.MedRxiv {
		src, err := fetch.NewMedRxiv("medrxiv", nil, logger.With("source", "medrxiv"))
		if err != nil {
			return nil, fmt.Errorf("build medrxiv source: %w", err)
		}
		registry.Register(src)
	}
	if cfg.BioRxiv {
		src, err := fetch.NewMedRxiv("biorxiv", nil, logger.With("source", "biorxiv"))
		if err != nil {
			return nil, fmt.Errorf("build biorxiv source: %w", err)
		}
		registry.Register(src)
	}
	if cfg.EuropePMC {
		registry.Register(fetch.NewEuropePMC(nil, logger.With("source", "europepmc")))
	}
	if len(cfg.Feeds) > 0 {
		registry.Register(fetch.NewRSS("rss", cfg.Feeds, nil, logger.With("source", "rss")))
	}

	return registry.All(), nil
}
