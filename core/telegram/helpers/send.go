package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/recipebot/core/logger"
	"github.com/m3rciful/recipebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// MessageSender is the subset of the Telegram API used to deliver messages.
// *tele.Bot satisfies it.
type MessageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

var (
	globalDispatcher atomic.Pointer[sender.Dispatcher]
	errNilSender     = errors.New("telegram: nil message sender")
)

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// Async runs fn on the outbound queue when one is wired. A saturated or
// closed queue falls back to running fn synchronously.
func Async(ctx context.Context, action, endpoint string, fn func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return fn()
	}
	if err := disp.Enqueue(ctx, action, endpoint, fn); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, logger.CompSender, "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return fn()
		}
		return err
	}
	return nil
}

// SendText delivers plain text (no parse mode) to chatID with optional reply markup.
func SendText(ctx context.Context, api MessageSender, chatID int64, text string, markup *tele.ReplyMarkup) error {
	if api == nil {
		return errNilSender
	}
	return Async(ctx, "send.text", "sendMessage", func() error {
		return DeliverText(api, chatID, text, markup)
	})
}

// DeliverText performs the sendMessage call synchronously.
func DeliverText(api MessageSender, chatID int64, text string, markup *tele.ReplyMarkup) error {
	if api == nil {
		return errNilSender
	}
	var err error
	if markup != nil {
		_, err = api.Send(tele.ChatID(chatID), text, markup)
	} else {
		_, err = api.Send(tele.ChatID(chatID), text)
	}
	return err
}
