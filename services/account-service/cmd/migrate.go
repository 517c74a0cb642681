package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"AccountPlatform/pkg/config"
	"AccountPlatform/pkg/database"
	"AccountPlatform/pkg/logger"
	"AccountPlatform/services/account-service/internal/repository/postgres"
)

type loadFunc func() (*config.Config, logger.Logger, error)

// newMigrateCmd применяет миграции схемы и завершает работу
func newMigrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы базы данных",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = appLogger.Sync() }()

			ctx := cmd.Context()
			db, err := database.Connect(ctx, databaseConfig(cfg))
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db.Pool); err != nil {
				return err
			}

			appLogger.Info("Migrations applied", logger.String("database", cfg.Database.Name))
			return nil
		},
	}
}

// databaseConfig переносит настройки базы данных из общей конфигурации
func databaseConfig(cfg *config.Config) *database.Config {
	dbConfig := database.NewConfig()
	dbConfig.Host = cfg.Database.Host
	dbConfig.Port = cfg.Database.Port
	dbConfig.User = cfg.Database.User
	dbConfig.Password = cfg.Database.Password
	dbConfig.Database = cfg.Database.Name
	if cfg.Database.SSLMode != "" {
		dbConfig.SSLMode = cfg.Database.SSLMode
	}
	if cfg.Database.MaxConns > 0 {
		dbConfig.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		dbConfig.MinConns = cfg.Database.MinConns
	}
	return dbConfig
}
