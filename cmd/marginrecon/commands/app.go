package commands

import (
	"fmt"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/marginstore"
	"github.com/wonny/marginrecon/internal/notify"
	"github.com/wonny/marginrecon/internal/pipeline"
	"github.com/wonny/marginrecon/pkg/config"
	"github.com/wonny/marginrecon/pkg/database"
	"github.com/wonny/marginrecon/pkg/logger"
	"github.com/wonny/marginrecon/pkg/redis"
)

const keyPrefix = "marginrecon"

// app holds the process-wide dependencies shared by the commands
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	rdb   *redis.Client
	store *marginstore.Store
}

// loadConfig loads the environment configuration and applies global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
	}
	if reportsFile != "" {
		cfg.Recon.ReportsFile = reportsFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp loads the configuration and connects
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return connect(cfg)
}

// connect opens PostgreSQL and, when enabled, Redis. A Redis outage
// degrades to running without the cache.
func connect(cfg *config.Config) (*app, error) {
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrConnection, err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rdb = redis.Disabled()
	}

	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		rdb:   rdb,
		store: marginstore.New(db.Pool, log),
	}, nil
}

func (a *app) Close() {
	_ = a.rdb.Close()
	a.db.Close()
}

func (a *app) cache() *redis.Cache {
	return redis.NewCache(a.rdb, keyPrefix)
}

// runner builds the reconciliation runner. feed is the websocket hub when
// running inside the API server.
func (a *app) runner(feed notify.Sink) (*pipeline.Runner, error) {
	sink, err := notify.Build(a.cfg.Notify, a.log, feed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
	}

	return pipeline.New(a.cfg, pipeline.Deps{
		Store:  a.store,
		Sink:   sink,
		Cache:  a.cache(),
		Logger: a.log,
	}), nil
}
