package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Stop promoting a resume",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()

		logger, config := setup()

		userID, _ := cmd.Flags().GetInt64("user")
		resumeID, _ := cmd.Flags().GetString("resume")

		store := openStore(ctx, config, logger)
		defer store.Close()

		svc := newService(config, store, newNotifier(config, logger), logger)

		if _, err := svc.Deactivate(ctx, userID, resumeID); err != nil {
			logger.Fatal("deactivating the resume", zap.Error(err), zap.Int64("user_id", userID), zap.String("resume_id", resumeID))
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List resumes being promoted for a user",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()

		logger, config := setup()

		userID, _ := cmd.Flags().GetInt64("user")

		store := openStore(ctx, config, logger)
		defer store.Close()

		svc := newService(config, store, newNotifier(config, logger), logger)

		resumes, err := svc.ListActive(ctx, userID)
		if err != nil {
			logger.Fatal("listing resumes", zap.Error(err))
		}

		logger.Info("active resumes", zap.Int64("user_id", userID), zap.Int("count", len(resumes)))

		for _, r := range resumes {
			logger.Info(r.Title,
				zap.String("resume_id", r.ID),
				zap.String("status", r.Status),
				zap.Time("next_publish_at", r.NextPublishAt),
				zap.Time("until", r.Until),
			)
		}
	},
}

func init() {
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(listCmd)

	deactivateCmd.Flags().Int64P("user", "u", 0, "chat id of the user")
	deactivateCmd.Flags().StringP("resume", "r", "", "resume id")
	deactivateCmd.MarkFlagRequired("user")
	deactivateCmd.MarkFlagRequired("resume")

	listCmd.Flags().Int64P("user", "u", 0, "chat id of the user")
	listCmd.MarkFlagRequired("user")
}
