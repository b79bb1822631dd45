package telegram

import (
	"fmt"

	"github.com/ericogr/sht15-to-mqtt/pkg/alert"
	"github.com/ericogr/sht15-to-mqtt/pkg/config"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Alerter sends alerts as chat messages.
type Alerter struct {
	bot    sender
	chatID int64
}

func New(cfg config.TelegramConfig) (alert.Alerter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Alerter{bot: bot, chatID: cfg.ChatID}, nil
}

func (a *Alerter) Send(al alert.Alert) error {
	if _, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, al.String())); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (a *Alerter) Close() error { return nil }
