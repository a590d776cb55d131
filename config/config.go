package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env string `env:"ENVIRONMENT"`

	Core struct {
		Port             int    `env:"CORE_PORT" envDefault:"3000"`
		DBPath           string `env:"CORE_DB_PATH" envDefault:"core.sqlite"`
		PollIntervalSecs int    `env:"POLL_INTERVAL_SECS" envDefault:"900"`
		BotWebhookURL    string `env:"BOT_WEBHOOK_URL"`
	}

	Pixiv struct {
		RefreshToken string `env:"PIXIV_REFRESH_TOKEN"`
		TimeoutSecs  int    `env:"PIXIV_TIMEOUT_SECS" envDefault:"30"`
	}

	Bot struct {
		Token          string  `env:"BOT_TOKEN"`
		DBPath         string  `env:"BOT_DB_PATH" envDefault:"bot.sqlite"`
		WebhookPort    int     `env:"WEBHOOK_PORT" envDefault:"3001"`
		CoreAPIURL     string  `env:"CORE_API_URL" envDefault:"http://localhost:3000"`
		SendRatePerSec float64 `env:"SEND_RATE_PER_SEC" envDefault:"25"`
	}

	log *zap.Logger
}

func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.Core.PollIntervalSecs) * time.Second
}

func (cfg *Config) PixivTimeout() time.Duration {
	return time.Duration(cfg.Pixiv.TimeoutSecs) * time.Second
}

// NewCoreConfig builds config for the detection service. Polling must never
// start without upstream credentials, so a missing refresh token is fatal.
func NewCoreConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg := parse(log)
	if cfg.Pixiv.RefreshToken == "" {
		log.Sugar().Panic("PIXIV_REFRESH_TOKEN envvar must be populated")
	}
	if cfg.Core.BotWebhookURL == "" {
		log.Sugar().Warn("BOT_WEBHOOK_URL is not set, detected updates will not be fanned out")
	}
	return cfg
}

// NewBotConfig builds config for the fan-out service.
func NewBotConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg := parse(log)
	if cfg.Bot.Token == "" {
		log.Sugar().Panic("BOT_TOKEN envvar must be populated")
	}
	return cfg
}

func parse(log *zap.Logger) *Config {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		log.Sugar().Panic(err)
	}
	return cfg
}
