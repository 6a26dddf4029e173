package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/fazecat/mogulfx/Internal/handlers/risk"
	"github.com/fazecat/mogulfx/Internal/utils/config"
)

const (
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelCritical = "CRITICAL"
)

type Message struct {
	Level  string
	Title  string
	Body   string
	Symbol string
}

func (m Message) String() string {
	s := m.Title
	if m.Symbol != "" {
		s = fmt.Sprintf("%s [%s]", s, m.Symbol)
	}
	if m.Body != "" {
		s += "\n" + m.Body
	}
	return s
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Console writes messages to the standard logger.
type Console struct{}

func (Console) Notify(ctx context.Context, msg Message) error {
	icon := "ℹ️ "
	switch msg.Level {
	case LevelWarning:
		icon = "⚠️ "
	case LevelCritical:
		icon = "🚨"
	}
	log.Printf("%s %s\n", icon, msg)
	return nil
}

// Multi fans a message out to every channel and joins their errors.
type Multi struct {
	mu       sync.RWMutex
	channels []Notifier
}

func NewMulti(channels ...Notifier) *Multi {
	return &Multi{channels: channels}
}

func (m *Multi) Add(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, n)
}

func (m *Multi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

func (m *Multi) Notify(ctx context.Context, msg Message) error {
	m.mu.RLock()
	channels := m.channels
	m.mu.RUnlock()

	var errs []error
	for _, n := range channels {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Telegrams returns the telegram channels so callers can start their
// command listeners.
func (m *Multi) Telegrams() []*Telegram {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Telegram
	for _, n := range m.channels {
		if tg, ok := n.(*Telegram); ok {
			out = append(out, tg)
		}
	}
	return out
}

// AlertHandler forwards risk alerts to n.
func AlertHandler(n Notifier) risk.AlertCallback {
	return func(a *risk.Alert) {
		msg := Message{Level: a.Level, Title: a.Title, Body: a.Message, Symbol: a.Symbol}
		if err := n.Notify(context.Background(), msg); err != nil {
			log.Printf("⚠️  alert delivery failed: %v\n", err)
		}
	}
}

// FromConfig builds the enabled channels. Telegram needs TELEGRAM_BOT_TOKEN
// and TELEGRAM_CHAT_ID; when they are missing the channel is skipped.
func FromConfig(cfg *config.Config) *Multi {
	multi := NewMulti()
	if cfg.Notifications.Channels.Console {
		multi.Add(Console{})
	}
	if cfg.Notifications.Channels.Telegram {
		token := os.Getenv("TELEGRAM_BOT_TOKEN")
		chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
		switch {
		case token == "":
			log.Println("⚠️  TELEGRAM_BOT_TOKEN not set: telegram notifications disabled")
		case err != nil:
			log.Printf("⚠️  TELEGRAM_CHAT_ID invalid: %v\n", err)
		default:
			tg, err := NewTelegram(token, chatID)
			if err != nil {
				log.Printf("⚠️  telegram unavailable: %v\n", err)
			} else {
				multi.Add(tg)
			}
		}
	}
	return multi
}
