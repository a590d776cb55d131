package bot

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns the subscription rows. Reads happen from both command handlers
// and the dispatcher; writes are idempotent so retried commands are harmless.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(lc fx.Lifecycle, db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db, log}
}

// Subscribe inserts the (user, artist) pair if absent. Re-subscribing is a
// no-op and keeps the existing last-notified marker.
func (s *Store) Subscribe(ctx context.Context, userID, artistID, initialMarker string) error {
	sub := &Subscription{
		UserID:         userID,
		ArtistID:       artistID,
		LastNotifiedID: initialMarker,
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sub)
	return tx.Error
}

// Unsubscribe is a no-op when the subscription does not exist.
func (s *Store) Unsubscribe(ctx context.Context, userID, artistID string) error {
	tx := s.db.WithContext(ctx).Delete(&Subscription{}, "user_id = ? AND artist_id = ?", userID, artistID)
	return tx.Error
}

func (s *Store) ListByUser(ctx context.Context, userID string) (Subscriptions, error) {
	var subs Subscriptions
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs)
	return subs, tx.Error
}

func (s *Store) ListByArtist(ctx context.Context, artistID string) (Subscriptions, error) {
	var subs Subscriptions
	tx := s.db.WithContext(ctx).Where("artist_id = ?", artistID).Find(&subs)
	return subs, tx.Error
}

func (s *Store) ListAll(ctx context.Context) (Subscriptions, error) {
	var subs Subscriptions
	tx := s.db.WithContext(ctx).Find(&subs)
	return subs, tx.Error
}

func (s *Store) SetLastNotified(ctx context.Context, userID, artistID, marker string) error {
	tx := s.db.WithContext(ctx).
		Model(&Subscription{}).
		Where("user_id = ? AND artist_id = ?", userID, artistID).
		Update("last_notified_id", marker)
	return tx.Error
}
