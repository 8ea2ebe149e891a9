package cmd

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/hh-toucher/internal/secrets"
)

type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	HeadHunter   HeadHunterConfig   `mapstructure:"headhunter"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Status       StatusConfig       `mapstructure:"status"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	DSNFile         string        `mapstructure:"dsn-file"`
	MaxOpenConns    int           `mapstructure:"max-open-conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max-idle-conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn-max-lifetime" validate:"gte=0"`
	// Migrate applies migrations before serving.
	Migrate bool `mapstructure:"migrate"`
}

type HeadHunterConfig struct {
	APIURL    string        `mapstructure:"api-url" validate:"omitempty,url"`
	UserAgent string        `mapstructure:"user-agent"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Workers  int           `mapstructure:"workers" validate:"gte=1"`
	OnlyDue  bool          `mapstructure:"only-due"`
	LockTTL  time.Duration `mapstructure:"lock-ttl" validate:"gte=0"`
}

type SubscriptionConfig struct {
	Days int `mapstructure:"days" validate:"gte=1"`
}

type TelegramConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Password string `mapstructure:"password"`
}

type StatusConfig struct {
	// Listen is the address of the status server. Empty disables it.
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// setDefaults registers every key so AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.dsn-file", "")
	v.SetDefault("database.max-open-conns", 10)
	v.SetDefault("database.max-idle-conns", 5)
	v.SetDefault("database.conn-max-lifetime", "30m")
	v.SetDefault("database.migrate", false)

	v.SetDefault("headhunter.api-url", "")
	v.SetDefault("headhunter.user-agent", "")
	v.SetDefault("headhunter.timeout", "10s")

	v.SetDefault("scheduler.interval", "4h")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.only-due", false)
	v.SetDefault("scheduler.lock-ttl", "1h")

	v.SetDefault("subscription.days", 7)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.token-file", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")

	v.SetDefault("status.listen", "")
}

func getConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// dsn resolves the database connection string. The file wins over the inline value.
func (c *Config) dsn() (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "database dsn",
		Value: c.Database.DSN,
		File:  c.Database.DSNFile,
		Env:   "DATABASE_URL",
	})
}

// telegramToken is empty when no bot is configured.
func (c *Config) telegramToken() (string, error) {
	return secrets.Optional(secrets.Source{
		Name:  "telegram bot token",
		Value: c.Telegram.Token,
		File:  c.Telegram.TokenFile,
		Env:   "BOT_TOKEN",
	})
}

func (c *Config) subscriptionPeriod() time.Duration {
	return time.Duration(c.Subscription.Days) * 24 * time.Hour
}
