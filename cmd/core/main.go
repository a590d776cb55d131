package main

import (
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gensaku/config"
	"gensaku/core"
	"gensaku/pixiv"
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
		fx.Provide(config.NewCoreConfig),

		fx.Provide(core.NewTransport),
		fx.Provide(core.NewDatabase),
		fx.Provide(core.NewRegistry),
		fx.Provide(pixiv.NewClient),
		fx.Provide(func(c *pixiv.Client) core.ContentSource { return c }),
		fx.Provide(core.NewWebhookNotifier),
		fx.Provide(func(n *core.WebhookNotifier) core.Notifier { return n }),
		fx.Provide(core.NewPoller),
		fx.Provide(core.NewAPI),

		fx.Invoke(func(*core.Poller) {}),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}
