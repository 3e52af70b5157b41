package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

//go:generate moq -out mocks/telegram.go -pkg mocks -skip-ensure -fmt goimports . TelegramAPI

// TelegramAPI is the part of the bot api used to send messages
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends events as messages to a chat
type Telegram struct {
	api    TelegramAPI
	chatID int64
}

// NewTelegram makes a telegram sink with a bot token
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

// NewTelegramWithAPI makes a telegram sink with a custom api client
func NewTelegramWithAPI(api TelegramAPI, chatID int64) *Telegram {
	return &Telegram{api: api, chatID: chatID}
}

// Send posts the event message and link to the chat
func (t *Telegram) Send(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := e.Message
	if e.Link != "" {
		text += "\n" + e.Link
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message to %d: %w", t.chatID, err)
	}
	return nil
}
