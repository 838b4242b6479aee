package main

import (
	"github.com/joho/godotenv"
	"github.com/md-rashed-zaman/huddle/libs/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "scheduling-service",
		Short:         "Meeting scheduling API: availability, meetings and invitations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside local development.
			_ = godotenv.Load()
			return config.Load(cfgFile)
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "optional config file (yaml, toml or json)")
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}
