package main

import (
	"github.com/md-rashed-zaman/huddle/libs/config"
	"github.com/md-rashed-zaman/huddle/libs/db"
	"github.com/md-rashed-zaman/huddle/libs/runtime"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := runtime.NewLogger(config.String("SERVICE_NAME", "scheduling-service"), config.String("LOG_LEVEL", "info"))
			dbURL, err := config.RequiredString("DATABASE_URL")
			if err != nil {
				return err
			}
			pool, err := db.Open(cmd.Context(), dbURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool, migrations.Schema); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}
