package main

import (
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gensaku/bot"
	"gensaku/config"
	"gensaku/core"
	"gensaku/senders"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(NewLogger),
		fx.Provide(config.NewBotConfig),

		fx.Provide(core.NewTransport),
		fx.Provide(bot.NewDatabase),
		fx.Provide(bot.NewStore),
		fx.Provide(bot.NewCoreClient),
		fx.Provide(func(c *bot.CoreClient) bot.CoreAPI { return c }),
		fx.Provide(bot.NewService),
		fx.Provide(bot.NewBot),
		fx.Provide(senders.NewTelegramSender),
		fx.Provide(func(s *senders.TelegramSender) bot.Delivery { return s }),
		fx.Provide(bot.NewDispatcher),
		fx.Provide(bot.NewWebhookServer),

		fx.Invoke(bot.RegisterCommands),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}
