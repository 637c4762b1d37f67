package helpers

import (
	"context"

	"github.com/m3rciful/recipebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	// requestKey is the tele.Context slot holding the update's request context.
	requestKey = "request_ctx"
	// RIDKey is the tele.Context slot for the request ID of the update.
	RIDKey = "rid"
)

// NewContext derives a request context from the update carried by c and
// stores it on c, replacing any earlier one. A request ID already set under
// RIDKey is kept; otherwise one is built from the update and recorded there.
func NewContext(c tele.Context) context.Context {
	updateID, chatID, userID := updateIDs(c)
	rid, _ := c.Get(RIDKey).(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
		c.Set(RIDKey, rid)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component(logger.CompTG))
	c.Set(requestKey, ctx)
	return ctx
}

// BuildContext returns the request context stored on c, creating it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	return NewContext(c)
}

// ContextFrom returns the request context stored on c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(requestKey).(context.Context)
	return ctx, ok && ctx != nil
}

// WithHandler tags the request context with the handler name so every later
// line of the update carries it.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(requestKey, ctx)
	return ctx
}

func updateIDs(c tele.Context) (updateID int, chatID, userID int64) {
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return c.Update().ID, chatID, userID
}
