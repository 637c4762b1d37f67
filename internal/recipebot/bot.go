// Package recipebot connects the recipe dispatcher to the Telegram runtime.
package recipebot

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/recipebot/core/logger"
	tg "github.com/m3rciful/recipebot/core/telegram"
	"github.com/m3rciful/recipebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/recipebot/core/telegram/helpers"
	"github.com/m3rciful/recipebot/core/telegram/middleware"
	"github.com/m3rciful/recipebot/internal/recipes"

	tele "gopkg.in/telebot.v4"
)

// ErrNoTransport is returned when an update arrives before a transport is attached.
var ErrNoTransport = errors.New("recipebot: transport not attached")

const startDescription = "Show the recipe menu"

// Bot answers every update through one dispatcher and sends the reply.
type Bot struct {
	dispatcher *recipes.Dispatcher

	mu        sync.RWMutex
	transport Transport
}

// New returns a Bot. transport may be nil and attached later with Attach.
func New(d *recipes.Dispatcher, transport Transport) *Bot {
	if d == nil {
		d = recipes.NewDispatcher(nil)
	}
	return &Bot{dispatcher: d, transport: transport}
}

// Attach sets the transport used for replies.
func (b *Bot) Attach(t Transport) {
	b.mu.Lock()
	b.transport = t
	b.mu.Unlock()
}

func (b *Bot) currentTransport() Transport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.transport
}

// Register binds /start, the category callbacks and both fallbacks to Handle.
func (b *Bot) Register(reg *tg.Registry) error {
	if reg == nil {
		return fmt.Errorf("recipebot: nil registry")
	}
	if err := reg.RegisterCommand(recipes.StartCommand, tg.Command{
		Handler:     b.Handle,
		Description: startDescription,
	}); err != nil {
		return fmt.Errorf("recipebot: register %s: %w", recipes.StartCommand, err)
	}
	for _, token := range recipes.CallbackTokens() {
		if err := reg.RegisterCallback(token, b.Handle); err != nil {
			return fmt.Errorf("recipebot: register %s: %w", token, err)
		}
	}
	reg.SetCallbackNotFound(b.Handle)
	reg.SetTextFallback(b.Handle)
	return nil
}

// Handle converts the Telegram update, asks the dispatcher for a reply and hands
// it to the transport. Updates without anything to answer are dropped silently.
func (b *Bot) Handle(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	reply, ok := b.dispatcher.Handle(UpdateFromTele(c.Update()))
	if !ok {
		logger.Debug(ctx, logger.CompTG, "update.ignored",
			slog.String("status", "skip"),
			slog.String("kind", middleware.UpdateKind(c.Update())),
		)
		return nil
	}

	t := b.currentTransport()
	if t == nil {
		return ErrNoTransport
	}
	if err := t.Send(ctx, reply); err != nil {
		return fmt.Errorf("send %s reply: %w", reply.Kind, err)
	}

	middleware.CountMessage(c, reply.Keyboard != nil)
	logger.Debug(ctx, logger.CompTG, "reply.queued",
		slog.String("status", "ok"),
		slog.String("reply_kind", string(reply.Kind)),
	)
	return nil
}

// UpdateFromTele maps a Telegram update onto the dispatcher's update type.
// It returns nil for updates that are neither text messages nor callbacks.
func UpdateFromTele(upd tele.Update) recipes.Update {
	switch {
	case upd.Callback != nil:
		cb := upd.Callback
		var chatID int64
		if cb.Message != nil && cb.Message.Chat != nil {
			chatID = cb.Message.Chat.ID
		}
		return recipes.CallbackEvent{ChatID: chatID, Data: callbacks.RawData(cb)}
	case upd.Message != nil:
		m := upd.Message
		msg := recipes.TextMessage{Text: m.Text}
		if m.Chat != nil {
			msg.ChatID = m.Chat.ID
		}
		if m.Sender != nil {
			msg.SenderName = m.Sender.FirstName
		}
		return msg
	}
	return nil
}
