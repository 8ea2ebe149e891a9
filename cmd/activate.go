package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-toucher/internal/headhunter"
	"github.com/spigell/hh-toucher/internal/secrets"
	"github.com/spigell/hh-toucher/internal/storage"
	"github.com/spigell/hh-toucher/internal/subscription"
)

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Authorize a user and start promoting one of their resumes",
	Run: func(cmd *cobra.Command, _ []string) {
		activate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)

	activateCmd.Flags().Int64P("user", "u", 0, "chat id of the user")
	activateCmd.Flags().StringP("resume", "r", "", "resume id; asked interactively when empty")
	activateCmd.Flags().String("token", "", "hh.ru access_token; asked interactively when empty and the user has none")
	activateCmd.Flags().String("token-file", "", "file with the hh.ru access_token")
	activateCmd.MarkFlagRequired("user")
}

func activate(cmd *cobra.Command) {
	ctx := context.Background()

	logger, config := setup()

	userID, _ := cmd.Flags().GetInt64("user")
	resumeID, _ := cmd.Flags().GetString("resume")
	tokenFlag, _ := cmd.Flags().GetString("token")
	tokenFile, _ := cmd.Flags().GetString("token-file")

	logger = logger.With(zap.Int64("user_id", userID))

	store := openStore(ctx, config, logger)
	defer store.Close()

	svc := newService(config, store, newNotifier(config, logger), logger)

	user, err := store.GetUser(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if user, err = svc.Start(ctx, userID); err != nil {
			logger.Fatal("registering the user", zap.Error(err))
		}
	case err != nil:
		logger.Fatal("loading the user", zap.Error(err))
	}

	token, err := secrets.Optional(secrets.Source{
		Name:  "headhunter token",
		Value: tokenFlag,
		File:  tokenFile,
		Env:   "HH_TOKEN",
	})
	if err != nil {
		logger.Fatal("loading headhunter token", zap.Error(err))
	}

	if token == "" && !user.HasToken() {
		if token, err = tokenPrompt.Run(); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	var resumes []*headhunter.Resume
	if token != "" {
		resumes, err = svc.SubmitToken(ctx, userID, token)
	} else {
		resumes, err = svc.Resumes(ctx, userID)
	}
	if err != nil {
		logger.Fatal("getting mine resumes", zap.Error(err))
	}

	logger.Info("getting mine resumes", zap.Int("count", len(resumes)))

	if resumeID == "" {
		if resumeID, err = selectResume(resumes); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	resume, err := svc.Activate(ctx, userID, resumeID)
	if err != nil {
		logger.Fatal("activating the resume", zap.Error(err))
	}

	logger.Info("resume will be published regularly",
		zap.String("resume_id", resume.ID),
		zap.String("title", resume.Title),
		zap.Time("until", resume.Until),
	)
}

var tokenPrompt = promptui.Prompt{
	Label: "hh.ru access_token",
	Mask:  '*',
	Validate: func(input string) error {
		_, err := subscription.ValidateToken(input)
		return err
	},
}

func selectResume(resumes []*headhunter.Resume) (string, error) {
	items := make([]string, 0, len(resumes))
	for _, r := range resumes {
		items = append(items, resumeLabel(r))
	}

	resumePrompt := promptui.Select{
		Label: "Choose a resume to promote and press ENTER",
		Items: items,
	}

	i, _, err := resumePrompt.Run()
	if err != nil {
		return "", err
	}

	return resumes[i].ID, nil
}

func resumeLabel(r *headhunter.Resume) string {
	label := fmt.Sprintf("%s / %s / %s", r.Title, r.Status, r.ID)
	if !r.NextPublishAt.IsZero() {
		label += fmt.Sprintf(" / next publish at %s", r.NextPublishAt.Local().Format("2006-01-02 15:04"))
	}
	return label
}
