package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-toucher/internal/scheduler"
)

var touchCmd = &cobra.Command{
	Use:   "touch",
	Short: "Run a single tick and exit (for cron)",
	Run: func(_ *cobra.Command, _ []string) {
		touch()
	},
}

func init() {
	rootCmd.AddCommand(touchCmd)
}

func touch() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	defer logger.Sync()

	store := openStore(ctx, config, logger)
	defer store.Close()

	locker, closeLocker := newLocker(ctx, config, logger)
	defer closeLocker()

	sched := newScheduler(config, store, newNotifier(config, logger), locker, logger)

	report, err := sched.Tick(ctx)
	switch {
	case errors.Is(err, scheduler.ErrTickInProgress):
		logger.Info("exiting", zap.String("reason", "another tick is running"))
		return
	case err != nil:
		logger.Fatal("tick failed", zap.Error(err))
	}

	logger.Info("done",
		zap.String("tick_id", report.ID),
		zap.Int("touched", report.Count(scheduler.Touched)),
		zap.Int("expired", report.Count(scheduler.Expired)),
	)
}
