package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-toucher/internal/status"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Publish active resumes every scheduler.interval until stopped",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("migrate", false, "apply database migrations before serving")
	serveCmd.Flags().String("listen", "", "address of the status server, e.g. :8080")

	viper.BindPFlag("database.migrate", serveCmd.Flags().Lookup("migrate"))
	viper.BindPFlag("status.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	defer logger.Sync()

	logger.Info("starting the hh-toucher", zap.String("version", version))

	store := openStore(ctx, config, logger)
	defer store.Close()

	if config.Database.Migrate {
		if err := store.RunMigrations(ctx); err != nil {
			logger.Fatal("applying migrations", zap.Error(err))
		}
	}

	locker, closeLocker := newLocker(ctx, config, logger)
	defer closeLocker()

	sched := newScheduler(config, store, newNotifier(config, logger), locker, logger)

	g, ctx := errgroup.WithContext(ctx)

	if config.Status.Listen != "" {
		if !viper.GetBool("debug") {
			gin.SetMode(gin.ReleaseMode)
		}
		router := status.NewRouter(store, sched, logger)

		g.Go(func() error {
			return status.Serve(ctx, config.Status.Listen, router, logger)
		})
	}

	g.Go(func() error {
		return sched.Run(ctx, config.Scheduler.Interval)
	})

	if err := g.Wait(); err != nil {
		logger.Error("stopped with error", zap.Error(err))
		return
	}

	logger.Info("stopped")
}
