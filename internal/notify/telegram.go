// Package notify delivers operator alerts (delivery failures, session
// drops) to a Telegram chat. It implements logx.AlertSender and stays fully
// disabled unless a token is configured.
package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"groupcast/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
}

type Telegram struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	// Send-only: no poller, the bot never consumes updates.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: cfg.ChatID, log: log}, nil
}

func (t *Telegram) SendAlert(ctx context.Context, text string) error {
	_ = ctx // telebot manages its own request timeouts
	_, err := t.bot.Send(&tele.Chat{ID: t.chatID}, text, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		t.log.Debug("alert send failed", logx.Err(err))
	}
	return err
}
