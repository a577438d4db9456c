package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/99minutos/accounts/internal/pkg/config"
	"github.com/99minutos/accounts/pkg/logger"
)

const serviceName = "accounts"

// cliState is shared by every subcommand once the root pre-run succeeds.
type cliState struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCommand() *cobra.Command {
	var (
		envFile string
		rt      cliState
	)

	root := &cobra.Command{
		Use:          serviceName,
		Short:        "User accounts service: registration, activation, sessions and profiles",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			cfg, err := config.LoadWith(cmd.Context(), envconfig.OsLookuper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			rt.cfg = cfg
			rt.log = logger.Init(logger.Options{
				Level:   cfg.LogLevel,
				Pretty:  cfg.IsDevelopment(),
				Service: serviceName,
				Env:     cfg.Env,
			})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCommand(&rt),
		newMigrateCommand(&rt),
	)
	return root
}

func newServeCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), rt.cfg, rt.log)
		},
	}
}

func newMigrateCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the user store schema and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), rt.cfg, rt.log)
		},
	}
}
