package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registry owns the set of artists being watched. Writes come from the
// control API (start/stop) and the poller (observations); reads may happen
// concurrently from request handlers.
type Registry struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRegistry(lc fx.Lifecycle, db *gorm.DB, log *zap.Logger) *Registry {
	return &Registry{db, log}
}

// StartMonitoring is an idempotent insert-if-absent. The initial marker keeps
// the first detection cycle from re-announcing work that predates the
// subscription.
func (r *Registry) StartMonitoring(ctx context.Context, artistID, initialMarker, artistName string) error {
	row := &MonitoredArtist{
		ArtistID:   artistID,
		ArtistName: artistName,
		LastWorkID: initialMarker,
	}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if tx.Error == nil && tx.RowsAffected > 0 {
		r.log.Sugar().Infow("Started monitoring artist", "artist_id", artistID, "initial_marker", initialMarker)
	}
	return tx.Error
}

func (r *Registry) StopMonitoring(ctx context.Context, artistID string) error {
	tx := r.db.WithContext(ctx).Delete(&MonitoredArtist{}, "artist_id = ?", artistID)
	if tx.Error == nil && tx.RowsAffected > 0 {
		r.log.Sugar().Infow("Stopped monitoring artist", "artist_id", artistID)
	}
	return tx.Error
}

// RecordObservation commits a newly observed marker. Only the poller calls
// this, so writes per artist are never concurrent.
func (r *Registry) RecordObservation(ctx context.Context, artistID, marker, artistName string) error {
	updates := map[string]any{
		"last_work_id": marker,
		"updated_at":   time.Now().UTC(),
	}
	if artistName != "" {
		updates["artist_name"] = artistName
	}
	tx := r.db.WithContext(ctx).Model(&MonitoredArtist{}).Where("artist_id = ?", artistID).Updates(updates)
	return tx.Error
}

// RefreshName opportunistically updates the cached display name without
// touching UpdatedAt, which is reserved for marker changes.
func (r *Registry) RefreshName(ctx context.Context, artistID, artistName string) error {
	tx := r.db.WithContext(ctx).Model(&MonitoredArtist{}).Where("artist_id = ?", artistID).UpdateColumn("artist_name", artistName)
	return tx.Error
}

// Get returns nil when the artist is not monitored.
func (r *Registry) Get(ctx context.Context, artistID string) (*MonitoredArtist, error) {
	artist := &MonitoredArtist{}
	tx := r.db.WithContext(ctx).Where("artist_id = ?", artistID).First(artist)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return artist, nil
}

func (r *Registry) ListAll(ctx context.Context) (MonitoredArtists, error) {
	var artists MonitoredArtists
	tx := r.db.WithContext(ctx).Find(&artists)
	return artists, tx.Error
}
