package senders

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"gensaku/config"
	"gensaku/pixiv"
)

// TelegramSender delivers work notifications over Telegram. All sends go
// through a shared rate limiter to stay under the Bot API's message budget.
type TelegramSender struct {
	log     *zap.Logger
	bot     *tele.Bot
	limiter *rate.Limiter
}

func NewTelegramSender(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, bot *tele.Bot) *TelegramSender {
	limiter := rate.NewLimiter(rate.Limit(cfg.Bot.SendRatePerSec), 1)
	return &TelegramSender{log, bot, limiter}
}

// SendWork sends the work as a photo with an HTML caption linking back to the
// artwork page.
func (s *TelegramSender) SendWork(ctx context.Context, recipientID string, work *pixiv.Illust) error {
	rec, err := recipient(recipientID)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	caption := fmt.Sprintf("<b>%s</b>\nby %s\n\n<a href=\"%s\">View on Pixiv</a>",
		html.EscapeString(work.Title),
		html.EscapeString(work.Artist.Name),
		work.PageURL(),
	)
	photo := &tele.Photo{
		File:    tele.FromURL(proxiedURL(work.ImageURLs.Large)),
		Caption: caption,
	}

	_, err = s.bot.Send(rec, photo, tele.ModeHTML)
	return err
}

// SendText is the degraded fallback: no markup, no media.
func (s *TelegramSender) SendText(ctx context.Context, recipientID string, text string) error {
	rec, err := recipient(recipientID)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = s.bot.Send(rec, text)
	return err
}

func recipient(recipientID string) (tele.Recipient, error) {
	id, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad recipient id %q: %w", recipientID, err)
	}
	return tele.ChatID(id), nil
}

// Telegram cannot fetch from Pixiv's CDN directly; the pixiv.re mirror serves
// the same assets without the Referer requirement.
func proxiedURL(imageURL string) string {
	return strings.Replace(imageURL, "i.pximg.net", "i.pixiv.re", 1)
}
