package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"AccountPlatform/pkg/config"
	"AccountPlatform/pkg/logger"
)

const version = "1.0.0"

// newRootCmd собирает дерево команд сервиса
func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:          "account-service",
		Short:        "Account service",
		Long:         `Сервис аккаунтов: регистрация, активация по ссылке из письма, вход и профили пользователей.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (yaml or json), env CONFIG_PATH")
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindEnv("config", "CONFIG_PATH")

	load := func() (*config.Config, logger.Logger, error) {
		cfg, err := config.LoadConfig(v.GetString("config"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		appLogger, err := logger.NewLogger(cfg.Environment, cfg.Logger.Level, cfg.Service.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create logger: %w", err)
		}
		return cfg, appLogger, nil
	}

	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newMigrateCmd(load))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}
