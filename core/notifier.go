package core

import (
	"context"
	"net/http"

	"github.com/carlmjohnson/requests"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/config"
	"gensaku/pixiv"
)

// EventNewItem is the only callback type the fan-out side accepts.
const EventNewItem = "new_item"

// NewWorkEvent is the wire payload POSTed to the fan-out service when a new
// work is detected.
type NewWorkEvent struct {
	Type     string        `json:"type"`
	ArtistID string        `json:"creator_id"`
	Item     *pixiv.Illust `json:"item"`
}

// WebhookNotifier pushes detected updates to the fan-out service. Delivery is
// at-most-once: a failed callback is logged and never retried, costing one
// missed notification rather than a stuck or duplicated detection state.
type WebhookNotifier struct {
	log        *zap.Logger
	webhookURL string
	transport  http.RoundTripper
}

func NewWebhookNotifier(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *WebhookNotifier {
	return &WebhookNotifier{log, cfg.Core.BotWebhookURL, transport}
}

func (n *WebhookNotifier) NotifyNewWork(ctx context.Context, artistID string, work *pixiv.Illust) {
	if n.webhookURL == "" {
		n.log.Sugar().Errorw("BOT_WEBHOOK_URL is not set, dropping update", "artist_id", artistID, "work_id", work.WorkID())
		return
	}

	event := NewWorkEvent{Type: EventNewItem, ArtistID: artistID, Item: work}
	err := requests.
		URL(n.webhookURL).
		Transport(n.transport).
		BodyJSON(event).
		Fetch(ctx)
	if err != nil {
		n.log.Sugar().Errorw("Webhook delivery failed, update will not be fanned out this cycle",
			"artist_id", artistID, "work_id", work.WorkID(), "err", err)
	}
}
