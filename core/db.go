package core

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gensaku/config"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(cfg.Core.DBPath), &gorm.Config{})
	if err != nil {
		log.Sugar().Panicw("failed to connect database", "err", err)
	}
	log.Info("Database started")

	log.Info("Starting migrations")
	db.AutoMigrate(
		&MonitoredArtist{},
	)
	return db
}

// MonitoredArtist is one watched artist. At most one row exists per artist id;
// the row appears when the first user subscribes and disappears when the last
// one leaves. UpdatedAt tracks marker changes, not name refreshes.
type MonitoredArtist struct {
	ArtistID   string `gorm:"primaryKey"`
	ArtistName string
	LastWorkID string
	UpdatedAt  time.Time
}

type MonitoredArtists []MonitoredArtist
