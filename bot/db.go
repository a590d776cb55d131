package bot

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gensaku/config"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(cfg.Bot.DBPath), &gorm.Config{})
	if err != nil {
		log.Sugar().Panicw("failed to connect database", "err", err)
	}
	log.Info("Database started")

	log.Info("Starting migrations")
	db.AutoMigrate(
		&Subscription{},
	)
	return db
}

// Subscription ties one user to one artist. LastNotifiedID is the newest work
// this particular user has been told about; it is seeded with the artist's
// newest work at subscribe time so new subscribers are not spammed with
// pre-existing content.
type Subscription struct {
	UserID         string `gorm:"primaryKey"`
	ArtistID       string `gorm:"primaryKey"`
	LastNotifiedID string
	CreatedAt      time.Time
}

type Subscriptions []Subscription
