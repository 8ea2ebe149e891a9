package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends messages through the Telegram bot API. Chat ids are user ids.
type Telegram struct {
	bot    sender
	logger *zap.Logger
}

func NewTelegram(token string, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	logger.Info("telegram bot authorized", zap.String("bot", bot.Self.UserName))

	return &Telegram{bot: bot, logger: logger}, nil
}

func (t *Telegram) Notify(ctx context.Context, userID int64, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text, err := Render(msg)
	if err != nil {
		return err
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("sending %s to %d: %w", msg.Kind, userID, err)
	}

	t.logger.Debug("notification sent", zap.Int64("user_id", userID), zap.String("kind", string(msg.Kind)))
	return nil
}
