package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()

		logger, config := setup()

		store := openStore(ctx, config, logger)
		defer store.Close()

		if err := store.RunMigrations(ctx); err != nil {
			logger.Fatal("applying migrations", zap.Error(err))
		}

		logger.Info("migrations applied")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
