package cmd

import (
	"context"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-toucher/internal/headhunter"
	"github.com/spigell/hh-toucher/internal/lock"
	"github.com/spigell/hh-toucher/internal/logger"
	"github.com/spigell/hh-toucher/internal/notifier"
	"github.com/spigell/hh-toucher/internal/scheduler"
	"github.com/spigell/hh-toucher/internal/storage"
	"github.com/spigell/hh-toucher/internal/subscription"
)

// setup builds the logger and the validated config shared by all commands.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig(viper.GetViper())
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	return logger, config
}

func openStore(ctx context.Context, config *Config, logger *zap.Logger) *storage.Postgres {
	dsn, err := config.dsn()
	if err != nil {
		logger.Fatal("loading database dsn",
			zap.Error(err),
			zap.String("hint", "set database.dsn, database.dsn-file or DATABASE_URL"),
		)
	}

	store, err := storage.OpenPostgres(ctx, dsn, storage.PoolOptions{
		MaxOpenConns:    config.Database.MaxOpenConns,
		MaxIdleConns:    config.Database.MaxIdleConns,
		ConnMaxLifetime: config.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}

	return store
}

func newNotifier(config *Config, logger *zap.Logger) notifier.Notifier {
	token, err := config.telegramToken()
	if err != nil {
		logger.Fatal("loading telegram token", zap.Error(err))
	}

	if token == "" {
		logger.Warn("telegram is not configured, notifications go to the log only")
		return notifier.NewLog(logger)
	}

	tg, err := notifier.NewTelegram(token, logger)
	if err != nil {
		logger.Fatal("connecting to telegram", zap.Error(err))
	}

	return tg
}

// newLocker falls back to an in-process lock when redis is not configured.
// The returned func closes the redis client.
func newLocker(ctx context.Context, config *Config, logger *zap.Logger) (lock.Locker, func()) {
	if config.Redis.URL == "" {
		logger.Debug("redis is not configured, ticks are serialized inside the process")
		return lock.NewLocal(), func() {}
	}

	client, err := lock.NewRedisClient(ctx, lock.RedisConfig{URL: config.Redis.URL, Password: config.Redis.Password})
	if err != nil {
		logger.Fatal("connecting to redis", zap.Error(err))
	}

	logger.Info("ticks are serialized through redis")

	return lock.NewRedis(client), func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing redis client", zap.Error(err))
		}
	}
}

func hhOptions(config *Config) *headhunter.Options {
	return &headhunter.Options{
		APIURL:    config.HeadHunter.APIURL,
		UserAgent: config.HeadHunter.UserAgent,
		Timeout:   config.HeadHunter.Timeout,
	}
}

func newScheduler(config *Config, store storage.Store, n notifier.Notifier, locker lock.Locker, logger *zap.Logger) *scheduler.Scheduler {
	s, err := scheduler.New(scheduler.Config{
		Workers: config.Scheduler.Workers,
		OnlyDue: config.Scheduler.OnlyDue,
		LockTTL: config.Scheduler.LockTTL,
	}, scheduler.Deps{
		Store:    store,
		Connect:  scheduler.HeadHunter(logger, hhOptions(config)),
		Notifier: n,
		Locker:   locker,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("creating the scheduler", zap.Error(err))
	}

	return s
}

func newService(config *Config, store storage.Store, n notifier.Notifier, logger *zap.Logger) *subscription.Service {
	return subscription.New(store, subscription.HeadHunter(logger, hhOptions(config)), n, subscription.Options{
		Period: config.subscriptionPeriod(),
		Logger: logger,
	})
}
