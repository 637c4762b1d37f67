package recipebot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/recipebot/core/logger"
	"github.com/m3rciful/recipebot/core/metrics"
	tghelpers "github.com/m3rciful/recipebot/core/telegram/helpers"
	"github.com/m3rciful/recipebot/core/telegram/keyboard"
	"github.com/m3rciful/recipebot/internal/recipes"

	tele "gopkg.in/telebot.v4"
)

// Transport delivers a reply to its chat.
type Transport interface {
	Send(ctx context.Context, reply recipes.Reply) error
}

// TeleTransport sends replies through the Telegram Bot API, via the outbound
// queue when one is running. A reply is counted only after Telegram accepts it.
type TeleTransport struct {
	api     tghelpers.MessageSender
	metrics *metrics.Metrics
}

// NewTeleTransport wraps api, usually the running *tele.Bot. A nil m means metrics.Default().
func NewTeleTransport(api tghelpers.MessageSender, m *metrics.Metrics) *TeleTransport {
	if m == nil {
		m = metrics.Default()
	}
	return &TeleTransport{api: api, metrics: m}
}

// Send hands reply to the outbound queue as plain text with its inline keyboard, if any.
func (t *TeleTransport) Send(ctx context.Context, reply recipes.Reply) error {
	markup := Markup(reply.Keyboard)
	return tghelpers.Async(ctx, "send.reply", "sendMessage", func() error {
		if err := tghelpers.DeliverText(t.api, reply.ChatID, reply.Text, markup); err != nil {
			return err
		}
		t.metrics.ObserveReply(string(reply.Kind))
		logger.Debug(ctx, logger.CompTG, "reply.sent",
			slog.String("status", "ok"),
			slog.String("reply_kind", string(reply.Kind)),
		)
		return nil
	})
}

// Markup converts a menu into an inline keyboard whose callback data is the raw token.
func Markup(kb recipes.Keyboard) *tele.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, 0, len(kb))
	for _, row := range kb {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			btns = append(btns, keyboard.InlineBtn{Text: b.Label, Data: b.Token})
		}
		rows = append(rows, btns)
	}
	return keyboard.InlineButtonsRows(rows...)
}
