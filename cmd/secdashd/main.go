package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"secdash/internal/alerts"
	"secdash/internal/api"
	"secdash/internal/authclient"
	"secdash/internal/config"
	"secdash/internal/credstore"
	"secdash/internal/feed"
	"secdash/internal/logging"
	"secdash/internal/session"
	"secdash/internal/storage"
	"secdash/internal/traffic"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	flag.Parse()

	_ = godotenv.Load()
	if *configPath == "" {
		*configPath = os.Getenv("SECDASH_CONFIG")
	}

	var cfg *config.Manager
	var err error
	if *configPath != "" {
		cfg, err = config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.NewStaticManager(config.DefaultConfig())
	}

	current := cfg.Get()
	logger := logging.NewLogger(current.LogLevel)
	logger.Info("secdash starting", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := credstore.NewStore(current.CredStore)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer creds.Close()
	if err := creds.Init(ctx); err != nil {
		return fmt.Errorf("credential store init: %w", err)
	}

	var sessions *session.Manager
	authClient := authclient.New(current.Auth, authclient.TokenFunc(func() string {
		if sessions == nil {
			return ""
		}
		return sessions.Token()
	}), logger)
	sessions = session.NewManager(authClient, creds, logger)

	snapshots, err := storage.NewStore(current.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	var persist alerts.Persister
	if snapshots != nil {
		defer snapshots.Close()
		if err := snapshots.Init(ctx); err != nil {
			return fmt.Errorf("storage init: %w", err)
		}
		persist = snapshots
	}

	alertStore := alerts.NewStore(persist)
	trafficStore := traffic.NewStore(current.Feed.TrafficStoreLimit)
	sinks := feed.Sinks{
		Alerts:    alertStore,
		Traffic:   trafficStore,
		Snapshots: snapshots,
		Logger:    logger,
	}

	if err := feed.Hydrate(ctx, snapshots, sinks, current.Feed.TrafficStoreLimit); err != nil {
		logger.Warn("hydration failed", "err", err)
	}
	feed.StartSynthetic(ctx, cfg, sinks)
	feed.StartKafka(ctx, cfg, sinks)

	if err := sessions.Bootstrap(ctx); err != nil {
		logger.Warn("session bootstrap failed", "err", err)
	}
	logger.Info("session ready", "status", sessions.Snapshot().Status)

	api.Start(ctx, cfg, sessions, alertStore, trafficStore, logger, version)

	if cfg.Path() != "" {
		go cfg.Watch(0, func(next *config.Config) {
			logger.Info("config reloaded", "path", cfg.Path())
		}, func(err error) {
			logger.Warn("config reload failed", "err", err)
		}, ctx.Done())
	}

	<-ctx.Done()
	logger.Info("secdash stopping")
	return nil
}
