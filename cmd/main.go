package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cine-journey/config"
	"cine-journey/index"
	"cine-journey/logging"
	"cine-journey/model"
	"cine-journey/notifier"
	"cine-journey/planner"
	"cine-journey/scheduler"
	"cine-journey/scraper"
	"cine-journey/server"
	"cine-journey/storage"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
)

var cli struct {
	Config string `help:"Path to a YAML config file" type:"path" env:"CINE_CONFIG"`
	Mode   string `help:"serve runs the API and scheduler, scheduler runs only scheduled jobs, once runs the warm-up job and exits" enum:"serve,scheduler,once" default:"serve" env:"CINE_RUN_MODE"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("cine-journey"),
		kong.Description("Plans viewing journeys from discovered movies and shows."),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log.Info().Str("mode", cli.Mode).Msg("Starting Cine Journey")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, cli.Mode); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
	log.Info().Msg("Application shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, mode string) error {
	var sqliteStorage *storage.SQLiteStorage
	if cfg.Storage.Enabled {
		sqliteStorage = storage.NewSQLiteStorage(cfg.Storage.DataPath)
		if err := sqliteStorage.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer sqliteStorage.Close()
		displayDatabaseStats(ctx, sqliteStorage)
	}

	modelManager := model.NewModelManager()
	defer func() {
		if err := modelManager.CloseAll(); err != nil {
			log.Warn().Err(err).Msg("Failed to close encoders")
		}
	}()

	encoder, err := newEncoder(modelManager, cfg.Encoder)
	if err != nil {
		return err
	}

	idx, err := index.New(encoder)
	if err != nil {
		return fmt.Errorf("failed to create embedding index: %w", err)
	}
	log.Info().
		Str("encoder", encoder.GetModelName()).
		Int("dimension", idx.Dimension()).
		Msg("Embedding index ready")

	p, err := newPlanner(cfg, idx, sqliteStorage)
	if err != nil {
		return err
	}

	sched, err := newScheduler(cfg, p)
	if err != nil {
		return err
	}

	switch mode {
	case "once":
		return sched.RunJobNow(scheduler.IndexWarmupJobName)

	case "scheduler":
		startScheduler(cfg, sched)
		defer sched.Stop()
		log.Info().Msg("Application running. Press Ctrl+C to exit")
		<-ctx.Done()
		return nil

	default:
		if cfg.Scheduler.Enabled {
			startScheduler(cfg, sched)
			defer sched.Stop()
		}

		var catalog server.Catalog
		if sqliteStorage != nil {
			catalog = sqliteStorage
		}
		srv := server.New(p, catalog, server.Options{
			RateLimit:      cfg.Server.RateLimit,
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
		})
		return srv.Run(ctx, cfg.Addr())
	}
}

func newEncoder(manager *model.ModelManager, cfg config.EncoderConfig) (model.Encoder, error) {
	modelType, err := model.ParseModelType(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}

	encoder, err := manager.GetOrCreateModel(modelType, &model.ModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		ModelName: cfg.Model,
		Dimension: cfg.Dimension,
		Timeout:   int(cfg.Timeout.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load text encoder: %w", err)
	}
	return encoder, nil
}

func newPlanner(cfg *config.Config, idx *index.Index, sqliteStorage *storage.SQLiteStorage) (*planner.Planner, error) {
	opts := scraper.Options{
		UserAgent: cfg.Sources.UserAgent,
		Timeout:   cfg.Sources.LookupTimeout,
	}

	wikiOpts := opts
	wikiOpts.BaseURL = cfg.Sources.WikipediaURL

	var ratings planner.RatingFetcher = scraper.NoRatings{}
	if cfg.Sources.OMDbAPIKey != "" {
		omdbOpts := opts
		omdbOpts.BaseURL = cfg.Sources.OMDbURL
		omdbOpts.APIKey = cfg.Sources.OMDbAPIKey
		ratings = scraper.NewOMDbRatings(omdbOpts, scraper.BreakerSettings{
			MaxFailures: cfg.Sources.BreakerFailures,
			OpenTimeout: cfg.Sources.BreakerTimeout,
		})
	} else {
		log.Warn().Msg("No OMDb API key configured, content will be unrated")
	}

	var catalog planner.Catalog
	if sqliteStorage != nil {
		catalog = sqliteStorage
	}

	repo, err := planner.NewRepository(planner.RepositoryConfig{
		Searcher:      scraper.NewWikipediaSearcher(wikiOpts),
		Fetcher:       scraper.NewWikipediaFetcher(wikiOpts),
		Ratings:       ratings,
		Index:         idx,
		Catalog:       catalog,
		Concurrency:   cfg.Sources.Concurrency,
		LookupTimeout: cfg.Sources.LookupTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create content repository: %w", err)
	}

	return planner.New(repo, planner.Options{
		PoolSize:     cfg.Planner.PoolSize,
		DefaultQuery: cfg.Planner.DefaultQuery,
	}), nil
}

func newScheduler(cfg *config.Config, p *planner.Planner) (*scheduler.Scheduler, error) {
	var digest scheduler.Notifier
	if cfg.Email.Enabled {
		emailNotifier, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			SMTPHost:       cfg.Email.SMTPHost,
			SMTPPort:       cfg.Email.SMTPPort,
			Username:       cfg.Email.Username,
			SenderEmail:    cfg.Email.Sender,
			SenderPassword: cfg.Email.Password,
			RecipientEmail: cfg.Email.Recipient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create email notifier: %w", err)
		}
		digest = emailNotifier
	}

	sched := scheduler.NewScheduler(0)
	job := scheduler.NewIndexWarmupJob(p, digest, scheduler.IndexWarmupOptions{
		Queries: cfg.Scheduler.Queries,
		Limit:   cfg.Scheduler.Limit,
		Reset:   cfg.Scheduler.ResetIndex,
	})
	spec := cfg.Scheduler.Spec
	if spec == "" {
		spec = config.Default().Scheduler.Spec
	}
	if err := sched.AddJob(spec, job); err != nil {
		return nil, fmt.Errorf("failed to schedule index warm-up: %w", err)
	}
	return sched, nil
}

func startScheduler(cfg *config.Config, sched *scheduler.Scheduler) {
	sched.Start()
	log.Info().Str("spec", cfg.Scheduler.Spec).Msg("Index warm-up scheduled")

	if cfg.Scheduler.RunAtStartup {
		go func() {
			log.Info().Msg("Running initial index warm-up at startup")
			if err := sched.RunJobNow(scheduler.IndexWarmupJobName); err != nil {
				log.Error().Err(err).Msg("Error running initial job")
			}
		}()
	}
}

func displayDatabaseStats(ctx context.Context, s *storage.SQLiteStorage) {
	stats, err := s.GetStats()
	if err != nil {
		log.Warn().Err(err).Msg("Error getting database stats")
		return
	}

	version, err := s.GetDatabaseVersion(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Error getting database version")
	}

	log.Info().
		Int64("schema_version", version).
		Int("total", stats["total"]).
		Int("movies", stats["movies"]).
		Int("shows", stats["shows"]).
		Msg("Catalog statistics")
}
