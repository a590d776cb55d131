package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/config"
)

const commandTimeout = 30 * time.Second

func NewBot(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *tele.Bot {
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Sugar().Errorw("Bot error", "err", err)
		},
	})
	if err != nil {
		log.Sugar().Panicw("failed to create telegram bot", "err", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go b.Start()
			log.Sugar().Infof("Bot @%s started", b.Me.Username)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			b.Stop()
			return nil
		},
	})

	return b
}

// RegisterCommands wires the user-facing commands onto the bot. Handlers are
// thin adapters over Service.
func RegisterCommands(b *tele.Bot, log *zap.Logger, svc *Service) {
	c := &commands{log, svc}

	b.Handle("/start", c.help)
	b.Handle("/help", c.help)
	b.Handle("/subscribe", c.subscribe)
	b.Handle("/unsubscribe", c.unsubscribe)
	b.Handle("/list", c.list)
	b.Handle("/refresh", c.refresh)
}

type commands struct {
	log *zap.Logger
	svc *Service
}

func (c *commands) help(tc tele.Context) error {
	return tc.Send(strings.Join([]string{
		"/subscribe <artist_id> - get notified about an artist's new works",
		"/unsubscribe <artist_id> - stop notifications for an artist",
		"/list - show your subscriptions",
		"/refresh [artist_id] - check for updates right now",
	}, "\n"))
}

func (c *commands) subscribe(tc tele.Context) error {
	artistID := CleanArtistID(tc.Message().Payload)
	if artistID == "" {
		return tc.Send("Usage: /subscribe <artist_id>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	name, err := c.svc.Subscribe(ctx, senderID(tc), artistID)
	if errors.Is(err, ErrArtistNotFound) {
		return tc.Send("Artist not found.")
	}
	if err != nil {
		c.log.Sugar().Errorw("Subscribe failed", "artist_id", artistID, "err", err)
		return tc.Send("Failed to subscribe, please try again later.")
	}
	return tc.Send(fmt.Sprintf("Subscribed to %s (ID: %s).", name, artistID))
}

func (c *commands) unsubscribe(tc tele.Context) error {
	artistID := CleanArtistID(tc.Message().Payload)
	if artistID == "" {
		return tc.Send("Usage: /unsubscribe <artist_id>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := c.svc.Unsubscribe(ctx, senderID(tc), artistID); err != nil {
		c.log.Sugar().Errorw("Unsubscribe failed", "artist_id", artistID, "err", err)
		return tc.Send("Failed to unsubscribe, please try again later.")
	}
	return tc.Send(fmt.Sprintf("Unsubscribed from artist %s.", artistID))
}

func (c *commands) list(tc tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	subs, err := c.svc.List(ctx, senderID(tc))
	if err != nil {
		c.log.Sugar().Errorw("List failed", "err", err)
		return tc.Send("Failed to load your subscriptions.")
	}
	if len(subs) == 0 {
		return tc.Send("You have no subscriptions.")
	}

	lines := make([]string, 0, len(subs)+1)
	lines = append(lines, "Your subscriptions:")
	for _, sub := range subs {
		lines = append(lines, fmt.Sprintf("- https://www.pixiv.net/users/%s", sub.ArtistID))
	}
	return tc.Send(strings.Join(lines, "\n"))
}

func (c *commands) refresh(tc tele.Context) error {
	artistID := CleanArtistID(tc.Message().Payload)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := c.svc.ForceRefresh(ctx, artistID)
	if err != nil {
		c.log.Sugar().Errorw("Force refresh failed", "err", err)
		return tc.Send("Refresh failed, a check may already be running.")
	}
	return tc.Send(fmt.Sprintf("Checked %d artists, %d with new works.", result.CheckedCount, result.UpdatedCount))
}

func senderID(tc tele.Context) string {
	return strconv.FormatInt(tc.Sender().ID, 10)
}
