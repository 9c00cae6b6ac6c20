package notifier

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig is the outbound Telegram destination.
type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int
}

// telegramSink sends plain-text messages to one chat. Outbound only:
// no poller is started and no updates are consumed.
type telegramSink struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
}

// NewTelegramSink builds the sink. The token is verified against the
// Telegram API once, at construction.
func NewTelegramSink(cfg TelegramConfig) (Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &telegramSink{
		bot:      b,
		chat:     &tele.Chat{ID: cfg.ChatID},
		threadID: cfg.ThreadID,
	}, nil
}

func (s *telegramSink) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if s.threadID != 0 {
		opts.ThreadID = s.threadID
	}
	// telebot has no context plumbing; bound the call with a goroutine
	// so a stalled send can't outlive the caller's deadline.
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(s.chat, text, opts)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
