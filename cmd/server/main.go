package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"modelmarket/internal/adapters/backend"
	httpadapter "modelmarket/internal/adapters/http"
	"modelmarket/internal/adapters/memory"
	pg "modelmarket/internal/adapters/postgres"
	"modelmarket/internal/adapters/storage"
	"modelmarket/internal/auth"
	"modelmarket/internal/config"
	"modelmarket/internal/logger"
	"modelmarket/internal/pipeline"
	ports "modelmarket/internal/ports"
	"modelmarket/internal/realtime"
	chatsvc "modelmarket/internal/services/chat"
	datasetsvc "modelmarket/internal/services/datasets"
	domainsvc "modelmarket/internal/services/domains"
	projectsvc "modelmarket/internal/services/projects"
	runsvc "modelmarket/internal/services/runs"
	trainingsvc "modelmarket/internal/services/training"
	walletsvc "modelmarket/internal/services/wallet"
	"modelmarket/internal/workers/runner"
)

func main() {
	cfg, cfgErr := config.Load()
	log := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogFormat == "json")
	if cfgErr != nil {
		if cfg.IsProduction() || cfg.DatabaseURL == "" {
			log.Error("invalid configuration", "error", cfgErr)
			os.Exit(1)
		}
		log.Warn("configuration incomplete, using development defaults", "error", cfgErr)
		cfg.JWTSecret = config.LoadWithDefaults().JWTSecret
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect error", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// Wire repositories to services (ports)
	var _ ports.UserRepository = db
	var _ ports.ProjectRepository = db
	var _ ports.DatasetRepository = db
	var _ ports.TrainingRepository = db
	var _ ports.TrainerQueue = db
	var _ ports.DomainRepository = db
	var _ ports.WalletRepository = db

	files, err := storage.NewLocal(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		log.Error("storage init error", "error", err)
		os.Exit(1)
	}
	spool, err := storage.NewLocal(cfg.SpoolDir, "")
	if err != nil {
		log.Error("spool init error", "error", err)
		os.Exit(1)
	}

	api := backend.NewClient(cfg.APIBaseURL,
		backend.WithRate(cfg.BackendRPS),
		backend.WithAPIKey(cfg.OpenRouterAPIKey),
	)
	if !api.Configured() {
		log.Warn("API_BASE_URL not set, chat falls back to canned replies and payments are unavailable")
	}

	settings, err := pipeline.LoadSettings(cfg.PipelineConfig)
	if err != nil {
		log.Error("pipeline settings error", "error", err, "path", cfg.PipelineConfig)
		os.Exit(1)
	}
	opts := pipeline.Options{
		Rand:     pipeline.NewRand(cfg.PipelineSeed),
		Settings: settings,
		Logger:   log.WithComponent("pipeline").Logger,
	}
	if api.Configured() {
		opts.Uploader = api
	}

	runStore := memory.NewRuns()
	runs := runsvc.New(runStore, pipeline.NewVerifier(opts), pipeline.NewCompressor(opts), spool, log.WithComponent("runs").Logger)

	authn := auth.NewService(&auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}, db, log.WithComponent("auth").Logger)

	broker := realtime.NewBroker(log.WithComponent("realtime").Logger)
	go listenForChanges(ctx, db, broker, log)

	if cfg.RunWorkers > 0 {
		go runner.Run(ctx, runStore, runs, cfg.RunWorkers, 200*time.Millisecond, log.WithComponent("runner").Logger)
		log.Info("run workers started", "workers", cfg.RunWorkers)
	}
	go runner.Sweep(ctx, runs, time.Minute, cfg.RunTTL, log.WithComponent("sweeper").Logger)

	srv := httpadapter.New(httpadapter.Deps{
		Auth:         authn,
		Runs:         runs,
		RunQueue:     runStore,
		Projects:     projectsvc.New(db),
		Datasets:     datasetsvc.New(db, files, log.WithComponent("datasets").Logger),
		Training:     trainingsvc.New(db, db, log.WithComponent("training").Logger),
		Domains:      domainsvc.New(db),
		Wallet:       walletsvc.New(db, api, cfg.StripePublicKey, log.WithComponent("wallet").Logger),
		Chat:         chatsvc.New(api, log.WithComponent("chat").Logger),
		Analytics:    api,
		Broker:       broker,
		Storage:      files,
		Spool:        spool,
		DB:           db,
		TrainerToken: cfg.TrainerToken,
		Logger:       log.Logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	log.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// listenForChanges keeps the LISTEN connection alive until ctx ends.
func listenForChanges(ctx context.Context, db *pg.DB, broker *realtime.Broker, log *logger.Logger) {
	l := log.WithComponent("listener").Logger
	backoff := time.Second
	for {
		err := db.Listen(ctx, broker, l)
		if ctx.Err() != nil {
			return
		}
		l.Warn("change listener stopped, restarting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
