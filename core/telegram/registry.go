package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/recipebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command: its handler and the text shown in the client menu.
// Hidden commands still work but are left out of setMyCommands.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}

// Registry maps command names and callback keys to handlers.
// Command names and aliases are stored lowercased with a leading slash.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry whose unknown-callback handler shows a toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func commandKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" && name[0] != '/' {
		name = "/" + name
	}
	return name
}

// RegisterCommand adds cmd under name, which must start with a slash.
// A name or alias that is already taken is rejected.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	if r == nil || name == "" || cmd.Handler == nil || cmd.Description == "" {
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return errors.New("invalid command registration")
	}
	if name[0] != '/' {
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "no_slash_prefix"))
		return fmt.Errorf("command %q must start with /", name)
	}

	key := commandKey(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(key) {
		wireWarn("register.command.duplicate", slog.String("name", key))
		return fmt.Errorf("command already registered: %s", key)
	}
	for _, alias := range cmd.Aliases {
		if a := commandKey(alias); a == "" || a == key || r.taken(a) {
			wireWarn("register.command.duplicate", slog.String("name", key), slog.String("alias", alias))
			return fmt.Errorf("alias %q of %s is empty or taken", alias, key)
		}
	}
	r.commands[key] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[commandKey(alias)] = key
	}
	return nil
}

func (r *Registry) taken(key string) bool {
	_, cmd := r.commands[key]
	_, alias := r.aliases[key]
	return cmd || alias
}

// LookupCommand resolves name or one of its aliases, in any letter case and
// with or without the slash, to the canonical key and command.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	if r == nil {
		return "", Command{}, false
	}
	key := commandKey(name)
	if key == "" {
		return "", Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	cmd, ok := r.commands[key]
	if !ok {
		return "", Command{}, false
	}
	return key, cmd, true
}

// Commands returns a snapshot of the registered commands by canonical key.
func (r *Registry) Commands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// ListCommands returns the commands sorted by name, without hidden ones when visibleOnly is set.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for _, key := range slices.Sorted(maps.Keys(r.commands)) {
		if cmd := r.commands[key]; !visibleOnly || !cmd.Hidden {
			list = append(list, tele.Command{Text: key, Description: cmd.Description})
		}
	}
	return list
}

// RegisterCallback maps a callback key to its handler. Keys are matched exactly.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if r == nil || key == "" || handler == nil {
		wireWarn("register.callback.skip", slog.String("key", key), slog.Bool("handler_nil", handler == nil))
		return errors.New("invalid callback registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		wireWarn("register.callback.duplicate", slog.String("key", key))
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys in order.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unknown callback keys. nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for text that is not a command.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible commands through setMyCommands.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(botCommands(reg)); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}

// botCommands strips the slash; the Bot API rejects it in command names.
func botCommands(reg *Registry) []tele.Command {
	list := reg.ListCommands(true)
	for i := range list {
		list[i].Text = strings.TrimPrefix(list[i].Text, "/")
	}
	return list
}

func wireWarn(event string, attrs ...slog.Attr) {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event, attrs...)
}
