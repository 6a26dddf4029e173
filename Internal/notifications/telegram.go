package notifications

import (
	"context"
	"log"
	"strings"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c gobot.Chattable) (gobot.Message, error)
}

// Telegram posts messages to a single chat.
type Telegram struct {
	bot    sender
	api    *gobot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := gobot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("📨 Telegram connected as @%s\n", bot.Self.UserName)
	return &Telegram{bot: bot, api: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(gobot.NewMessage(t.chatID, msg.String()))
	return err
}

// Listen answers /status in the configured chat until ctx is done.
func (t *Telegram) Listen(ctx context.Context, status func() string) error {
	if t.api == nil {
		return nil
	}
	u := gobot.NewUpdate(0)
	u.Timeout = 30
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up := <-updates:
			if up.Message == nil || up.Message.Chat.ID != t.chatID {
				continue
			}
			reply := "Commands: /status"
			if strings.HasPrefix(strings.TrimSpace(up.Message.Text), "/status") {
				reply = status()
			}
			if _, err := t.bot.Send(gobot.NewMessage(t.chatID, reply)); err != nil {
				log.Printf("⚠️  send tg msg: %v\n", err)
			}
		}
	}
}
