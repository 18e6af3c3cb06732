package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/config"
	"vigil/internal/api"
	"vigil/internal/core"
	"vigil/internal/logging"
	"vigil/internal/storage"
	"vigil/internal/storage/sqlite"
	"vigil/internal/sweeper"
)

const (
	shutdownTimeout   = 10 * time.Second
	defaultConfigPath = "config.json"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error

	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}

	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Logging.Format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	timezone, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize database
	logger.Info("Initializing SQLite database", "path", cfg.Database.Path)
	var db storage.Storage
	db, err = sqlite.New(cfg.Database.Path, timezone)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Wire the engines
	aggregates := core.NewAggregateEngine(db, timezone)
	sessions := core.NewSessionEngine(db, aggregates, cfg.Session.StaleThreshold(), logger)
	policy := core.NewEvaluator(timezone)
	rewards := core.NewRewardService(db, aggregates, core.RealClock{}, logger)
	service := core.NewService(sessions, aggregates, policy, rewards, db, timezone, core.RealClock{}, logger)
	loggedService := logging.NewServiceLogger(service, logger)

	// Start the abandoned-session sweeper
	logger.Info("Starting session sweeper",
		"grace", cfg.Session.Grace().String(),
		"interval", cfg.Session.SweepInterval().String())
	sweep := sweeper.NewSweeper(db, sessions, cfg.Session.Grace(), cfg.Session.SweepInterval(), logger)
	go sweep.Start()

	// Initialize REST API
	router := api.NewRouter(api.RouterConfig{
		Service:  loggedService,
		Timezone: timezone,
		APIKey:   cfg.Security.APIKey,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Starting graceful shutdown", "signal", sig.String())

		sweep.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("Shutdown complete")
	}

	return nil
}
