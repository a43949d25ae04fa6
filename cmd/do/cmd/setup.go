package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/clickfit/clickfit/internal/config"
	"github.com/clickfit/clickfit/internal/db"
	"github.com/clickfit/clickfit/internal/logger"
)

// loadConfig reads .env and the environment the same way the server does
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.IsDevelopment(), "", cfg.AppName)
	return cfg, nil
}

// openDB connects and brings the schema up to date
func openDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, err
	}
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, nil
}
