package recipes

import (
	"fmt"
	"strings"
)

// StartCommand greets the user and shows the category menu.
const StartCommand = "/start"

const defaultSenderName = "User"

const (
	greetingFormat       = "Hello %s, I'm a recipe book bot, and I will help you find the recipe you want.Please press any button below to see all the dishes, or you can send me the name of a dish, and if I have that dish, I will send you the recipe."
	recipeFormat         = "Here is the recipe for %s:\n%s"
	notFoundFormat       = "Sorry, I don't have a recipe for %s."
	unknownCategoryReply = "Sorry, I don't have a recipe for this category."
)

var categoryReplies = map[string]string{
	TokenSalad:    "Here is a salad recipe:\nIngredients: Lettuce, Tomato, Cucumber.\nSteps: Chop the vegetables, mix and serve.",
	TokenSoup:     "Here is a soup recipe:\nIngredients: Potatoes, Carrots, Onion.\nSteps: Boil vegetables, blend, and serve.",
	TokenMeat:     "Here is a meat dish recipe:\nIngredients: Chicken, Garlic, Olive oil.\nSteps: Roast chicken with garlic and olive oil.",
	TokenDesserts: "Here is a chocolate cake recipe:\nIngredients: 200 g dark chocolate, 150 g butter, 150 g sugar, 3 eggs, 100 g flour.\nSteps: Melt chocolate and butter. Beat eggs with sugar. Mix in chocolate, then add flour. Bake at 180°C for 25-30 minutes.",
	TokenShowAll:  "Here are all the available categories:\n1. Salad 🥗\n2. Soup 🍲\n3. Meat 🍖\n4. Dessert\nSend me any category, and I will reply with a recipe.",
}

// Update is an inbound event. It is implemented by TextMessage and CallbackEvent only.
type Update interface {
	isUpdate()
}

// TextMessage is a plain text message sent to the bot.
type TextMessage struct {
	ChatID     int64
	SenderName string
	Text       string
}

func (TextMessage) isUpdate() {}

// CallbackEvent is an inline button press.
type CallbackEvent struct {
	ChatID int64
	Data   string
}

func (CallbackEvent) isUpdate() {}

// ReplyKind classifies a reply for logs and metrics.
type ReplyKind string

const (
	ReplyGreeting        ReplyKind = "greeting"
	ReplyRecipe          ReplyKind = "recipe"
	ReplyNotFound        ReplyKind = "not_found"
	ReplyCategory        ReplyKind = "category"
	ReplyUnknownCategory ReplyKind = "category_unknown"
)

// Reply is the message the dispatcher wants delivered.
type Reply struct {
	ChatID   int64
	Text     string
	Keyboard Keyboard
	Kind     ReplyKind
}

// Dispatcher routes updates to static replies. It holds no mutable state.
type Dispatcher struct {
	store *Store
}

// NewDispatcher returns a dispatcher answering from store. A nil store falls back to the built-in book.
func NewDispatcher(store *Store) *Dispatcher {
	if store == nil {
		store = DefaultStore()
	}
	return &Dispatcher{store: store}
}

// Handle classifies u and returns the reply to send. ok is false when the update
// carries nothing to answer and must be ignored.
func (d *Dispatcher) Handle(u Update) (reply Reply, ok bool) {
	switch v := u.(type) {
	case TextMessage:
		return d.handleText(v)
	case *TextMessage:
		if v == nil {
			return Reply{}, false
		}
		return d.handleText(*v)
	case CallbackEvent:
		return d.handleCallback(v)
	case *CallbackEvent:
		if v == nil {
			return Reply{}, false
		}
		return d.handleCallback(*v)
	}
	return Reply{}, false
}

func (d *Dispatcher) handleText(m TextMessage) (Reply, bool) {
	if m.ChatID == 0 || m.Text == "" {
		return Reply{}, false
	}
	if strings.ToLower(m.Text) == StartCommand {
		name := m.SenderName
		if name == "" {
			name = defaultSenderName
		}
		return Reply{
			ChatID:   m.ChatID,
			Text:     fmt.Sprintf(greetingFormat, name),
			Keyboard: BuildMenu(),
			Kind:     ReplyGreeting,
		}, true
	}
	if recipe, found := d.store.Lookup(m.Text); found {
		return Reply{
			ChatID: m.ChatID,
			Text:   fmt.Sprintf(recipeFormat, m.Text, recipe),
			Kind:   ReplyRecipe,
		}, true
	}
	return Reply{
		ChatID: m.ChatID,
		Text:   fmt.Sprintf(notFoundFormat, m.Text),
		Kind:   ReplyNotFound,
	}, true
}

func (d *Dispatcher) handleCallback(e CallbackEvent) (Reply, bool) {
	if e.ChatID == 0 || e.Data == "" {
		return Reply{}, false
	}
	if text, found := categoryReplies[e.Data]; found {
		return Reply{ChatID: e.ChatID, Text: text, Kind: ReplyCategory}, true
	}
	return Reply{ChatID: e.ChatID, Text: unknownCategoryReply, Kind: ReplyUnknownCategory}, true
}
