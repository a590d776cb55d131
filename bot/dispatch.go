package bot

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/pixiv"
)

// Delivery is the chat transport seen from the dispatcher: a rich send and a
// degraded plain-text fallback.
type Delivery interface {
	SendWork(ctx context.Context, recipientID string, work *pixiv.Illust) error
	SendText(ctx context.Context, recipientID string, text string) error
}

// Dispatcher fans one detected update out to every subscriber of the artist.
// Deliveries are best-effort and isolated per recipient: no retry queue, no
// backoff, and one failure never blocks the rest.
type Dispatcher struct {
	log      *zap.Logger
	store    *Store
	delivery Delivery
}

func NewDispatcher(lc fx.Lifecycle, log *zap.Logger, store *Store, delivery Delivery) *Dispatcher {
	return &Dispatcher{log, store, delivery}
}

func (d *Dispatcher) Dispatch(ctx context.Context, artistID string, work *pixiv.Illust) {
	subs, err := d.store.ListByArtist(ctx, artistID)
	if err != nil {
		d.log.Sugar().Errorw("Failed to look up subscribers", "artist_id", artistID, "err", err)
		return
	}
	if len(subs) == 0 {
		d.log.Sugar().Infow("No subscribers for artist, dropping update", "artist_id", artistID)
		return
	}

	d.log.Sugar().Infow("Fanning out new work",
		"artist_id", artistID, "work_id", work.WorkID(), "subscribers", len(subs))

	delivered := 0
	for _, sub := range subs {
		if err := d.deliverOne(ctx, sub, work); err != nil {
			continue
		}
		delivered++
	}

	if delivered < len(subs) {
		d.log.Sugar().Warnw("Fan-out completed with failures",
			"artist_id", artistID, "delivered", delivered, "total", len(subs))
	} else {
		d.log.Sugar().Infow("Fan-out completed", "artist_id", artistID, "delivered", delivered)
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, sub Subscription, work *pixiv.Illust) error {
	if err := d.delivery.SendWork(ctx, sub.UserID, work); err != nil {
		d.log.Sugar().Warnw("Delivery failed, falling back to plain text",
			"user_id", sub.UserID, "work_id", work.WorkID(), "err", err)

		fallback := fmt.Sprintf("New work: %s\n%s", work.Title, work.PageURL())
		if err := d.delivery.SendText(ctx, sub.UserID, fallback); err != nil {
			d.log.Sugar().Errorw("Fallback delivery failed, dropping notification",
				"user_id", sub.UserID, "work_id", work.WorkID(), "err", err)
			return err
		}
	}

	if err := d.store.SetLastNotified(ctx, sub.UserID, sub.ArtistID, work.WorkID()); err != nil {
		d.log.Sugar().Warnw("Failed to record last-notified marker",
			"user_id", sub.UserID, "artist_id", sub.ArtistID, "err", err)
	}
	return nil
}
