package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/clickfit/clickfit/internal/config"
	"github.com/clickfit/clickfit/internal/db"
	"github.com/clickfit/clickfit/internal/repository"
	"github.com/clickfit/clickfit/internal/service"
	"github.com/clickfit/clickfit/internal/storage"
	"github.com/clickfit/clickfit/internal/validation"
)

type App struct {
	Cfg          *config.Config
	DB           *sqlx.DB
	Storage      storage.Storage
	Registry     *prometheus.Registry
	AssetService *service.AssetService
	UserService  *service.UserService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := storage.NewPrometheusObserver("clickfit_storage", registry)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to register storage metrics: %w", err)
	}

	// Storage
	assetStorage, err := storage.New(cfg, observer)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)

	// Services
	constraints := validation.ImageConstraints.WithMaxSize(cfg.Upload.MaxSize)
	assetService := service.NewAssetService(assetStorage, constraints, cfg.Upload.MaxFiles)
	userService := service.NewUserService(userRepository)

	return &App{
		Cfg:          cfg,
		DB:           database,
		Storage:      assetStorage,
		Registry:     registry,
		AssetService: assetService,
		UserService:  userService,
	}, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
