package bot

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/core"
	"gensaku/pixiv"
)

// ErrArtistNotFound means the given id does not resolve to an artist upstream.
var ErrArtistNotFound = errors.New("artist not found")

// CoreAPI is what the subscription flows need from the detection service.
type CoreAPI interface {
	ArtistInfo(ctx context.Context, artistID string) (*pixiv.UserDetail, error)
	LatestWorks(ctx context.Context, artistID string) ([]pixiv.Illust, error)
	Register(ctx context.Context, artistID, initialMarker, artistName string) error
	Deregister(ctx context.Context, artistID string) error
	ForceUpdate(ctx context.Context, artistID string) (*core.PollResult, error)
}

// Service implements the user-facing subscription flows and keeps the two
// stores loosely in sync through the core control API. The stores are not
// transactionally coupled; registration calls are idempotent and their
// failures non-fatal.
type Service struct {
	log   *zap.Logger
	store *Store
	core  CoreAPI
}

func NewService(lc fx.Lifecycle, log *zap.Logger, store *Store, coreAPI CoreAPI) *Service {
	return &Service{log, store, coreAPI}
}

// Subscribe validates the artist, seeds the last-notified marker with the
// artist's current newest work, stores the subscription, and registers the
// artist for monitoring. Returns the artist's display name.
func (svc *Service) Subscribe(ctx context.Context, userID, artistID string) (string, error) {
	detail, err := svc.core.ArtistInfo(ctx, artistID)
	if errors.Is(err, pixiv.ErrNotFound) {
		return "", ErrArtistNotFound
	}
	if err != nil {
		return "", err
	}

	marker := ""
	if works, err := svc.core.LatestWorks(ctx, artistID); err != nil {
		// Tolerable: the first detection cycle may announce the newest
		// existing work once.
		svc.log.Sugar().Warnw("Could not seed initial marker", "artist_id", artistID, "err", err)
	} else if len(works) > 0 {
		marker = works[0].WorkID()
	}

	if err := svc.store.Subscribe(ctx, userID, artistID, marker); err != nil {
		return "", err
	}

	artistName := detail.Artist.Name
	if err := svc.core.Register(ctx, artistID, marker, artistName); err != nil {
		// The subscription stands; a later register call can reconcile.
		svc.log.Sugar().Errorw("Failed to register artist for monitoring", "artist_id", artistID, "err", err)
	}

	svc.log.Sugar().Infow("Subscribed", "user_id", userID, "artist_id", artistID)
	return artistName, nil
}

// Unsubscribe removes the subscription and, when the last subscriber leaves,
// asks the detection service to stop monitoring. The empty-check and the
// deregister call are not atomic across the two services; a concurrent
// subscribe can slip between them (see DESIGN.md).
func (svc *Service) Unsubscribe(ctx context.Context, userID, artistID string) error {
	if err := svc.store.Unsubscribe(ctx, userID, artistID); err != nil {
		return err
	}

	remaining, err := svc.store.ListByArtist(ctx, artistID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		if err := svc.core.Deregister(ctx, artistID); err != nil {
			svc.log.Sugar().Errorw("Failed to deregister artist", "artist_id", artistID, "err", err)
		}
	}

	svc.log.Sugar().Infow("Unsubscribed", "user_id", userID, "artist_id", artistID)
	return nil
}

func (svc *Service) List(ctx context.Context, userID string) (Subscriptions, error) {
	return svc.store.ListByUser(ctx, userID)
}

// ForceRefresh triggers an immediate detection cycle and returns its summary.
func (svc *Service) ForceRefresh(ctx context.Context, artistID string) (*core.PollResult, error) {
	return svc.core.ForceUpdate(ctx, artistID)
}

var nonDigits = regexp.MustCompile(`[^\d]`)

// CleanArtistID strips everything but digits, so pasted profile URLs and
// plain ids both work.
func CleanArtistID(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}
