package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"slot_watch/internal/ctxutil"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Telegram posts into a single chat through a bot account. Expiring
// messages are deleted by a background timer.
type Telegram struct {
	token  string
	chatID int64
	opts   []bot.Option

	cg ctxutil.CloseGroup

	mu  sync.Mutex
	bot *bot.Bot
}

// NewTelegram creates a backend. The bot is only contacted on Start.
func NewTelegram(token string, chatID int64, opts ...bot.Option) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	if chatID == 0 {
		return nil, errors.New("telegram: empty chat id")
	}
	return &Telegram{token: token, chatID: chatID, opts: opts}, nil
}

func (t *Telegram) Start(ctx context.Context) error {
	b, err := bot.New(t.token, t.opts...)
	if err != nil {
		return fmt.Errorf("telegram: could not create bot: %w", err)
	}
	self, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: could not identify bot: %w", err)
	}

	t.mu.Lock()
	t.bot = b
	t.mu.Unlock()

	slog.Info("Telegram session started", slog.String("bot", self.Username), slog.Int64("chat", t.chatID))
	return nil
}

// Stop cancels pending expiry timers and waits for them.
func (t *Telegram) Stop() {
	t.cg.Close()
}

func (t *Telegram) client() (*bot.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot == nil {
		return nil, errors.New("telegram: session not started")
	}
	return t.bot, nil
}

func (t *Telegram) Send(ctx context.Context, text string, expire time.Duration) error {
	b, err := t.client()
	if err != nil {
		return err
	}
	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram: could not send message: %w", err)
	}
	t.expireLater(b, msg.ID, expire)
	return nil
}

func (t *Telegram) SendImage(ctx context.Context, png []byte, caption string, expire time.Duration) error {
	b, err := t.client()
	if err != nil {
		return err
	}
	msg, err := b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  t.chatID,
		Photo:   &models.InputFileUpload{Filename: "snapshot.png", Data: bytes.NewReader(png)},
		Caption: caption,
	})
	if err != nil {
		return fmt.Errorf("telegram: could not send photo: %w", err)
	}
	t.expireLater(b, msg.ID, expire)
	return nil
}

func (t *Telegram) expireLater(b *bot.Bot, messageID int, expire time.Duration) {
	if expire <= 0 {
		return
	}
	t.cg.Go(func(ctx context.Context) {
		ctxutil.Sleep(ctx, expire)
		if ctx.Err() != nil {
			return
		}
		if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: t.chatID, MessageID: messageID}); err != nil {
			slog.Warn("could not delete expired message (ignored)", slog.Int("message", messageID), slog.Any("error", err))
		}
	})
}
