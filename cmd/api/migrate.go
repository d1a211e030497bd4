package main

import (
	"conference-payments/internal/client"
	"conference-payments/internal/config"
	"conference-payments/internal/logger"
	"conference-payments/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := client.InitDBClient(cfg.Database)
			if err != nil {
				return err
			}

			if err := client.Migrate(db); err != nil {
				return err
			}
			log.Info("schema migrated", zap.String("driver", cfg.Database.Driver))

			if seed {
				if err := repository.NewConferenceRepository(db).Seed(cmd.Context()); err != nil {
					return err
				}
				log.Info("demo conference seeded")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Insert the demo conference and its registration types")

	return cmd
}
