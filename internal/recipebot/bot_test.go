package recipebot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/recipebot/core/metrics"
	tg "github.com/m3rciful/recipebot/core/telegram"
	tghelpers "github.com/m3rciful/recipebot/core/telegram/helpers"
	"github.com/m3rciful/recipebot/core/telegram/sender"
	"github.com/m3rciful/recipebot/internal/recipes"

	tele "gopkg.in/telebot.v4"
)

type fakeTransport struct {
	mu      sync.Mutex
	replies []recipes.Reply
	err     error
}

func (f *fakeTransport) Send(_ context.Context, reply recipes.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, reply)
	return nil
}

type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]interface{}
}

func newFakeContext(upd tele.Update) *fakeContext {
	return &fakeContext{update: upd, store: map[string]interface{}{}}
}

func (f *fakeContext) Update() tele.Update { return f.update }

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, val interface{}) { f.store[key] = val }

func (f *fakeContext) Sender() *tele.User {
	switch {
	case f.update.Callback != nil:
		return f.update.Callback.Sender
	case f.update.Message != nil:
		return f.update.Message.Sender
	}
	return nil
}

func (f *fakeContext) Chat() *tele.Chat {
	switch {
	case f.update.Callback != nil && f.update.Callback.Message != nil:
		return f.update.Callback.Message.Chat
	case f.update.Message != nil:
		return f.update.Message.Chat
	}
	return nil
}

func text(chatID int64, name, body string) tele.Update {
	return tele.Update{ID: 1, Message: &tele.Message{
		Text:   body,
		Chat:   &tele.Chat{ID: chatID},
		Sender: &tele.User{ID: chatID, FirstName: name},
	}}
}

func press(chatID int64, data string) tele.Update {
	return tele.Update{ID: 2, Callback: &tele.Callback{
		Data:    data,
		Sender:  &tele.User{ID: chatID},
		Message: &tele.Message{Chat: &tele.Chat{ID: chatID}},
	}}
}

func TestHandleStartSendsGreetingWithMenu(t *testing.T) {
	tr := &fakeTransport{}
	b := New(nil, tr)
	c := newFakeContext(text(42, "Ana", "/start"))
	if err := b.Handle(c); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(tr.replies) != 1 {
		t.Fatalf("replies = %d", len(tr.replies))
	}
	r := tr.replies[0]
	if r.ChatID != 42 || !strings.HasPrefix(r.Text, "Hello Ana, I'm a recipe book bot") {
		t.Fatalf("reply = %+v", r)
	}
	if r.Kind != recipes.ReplyGreeting || len(r.Keyboard) != 3 {
		t.Fatalf("reply kind=%s rows=%d", r.Kind, len(r.Keyboard))
	}
	if c.store["messages"] != 1 || c.store["kb"] != true {
		t.Fatalf("counters = %v / %v", c.store["messages"], c.store["kb"])
	}
}

func TestHandleRecipeAndMiss(t *testing.T) {
	tr := &fakeTransport{}
	b := New(nil, tr)
	for _, body := range []string{"PASTA", "Pizza"} {
		if err := b.Handle(newFakeContext(text(7, "Bo", body))); err != nil {
			t.Fatalf("%q: %v", body, err)
		}
	}
	if !strings.HasPrefix(tr.replies[0].Text, "Here is the recipe for PASTA:\nIngredients: pasta") {
		t.Fatalf("recipe = %q", tr.replies[0].Text)
	}
	if tr.replies[1].Text != "Sorry, I don't have a recipe for Pizza." {
		t.Fatalf("miss = %q", tr.replies[1].Text)
	}
}

func TestHandleCallbacks(t *testing.T) {
	tr := &fakeTransport{}
	b := New(nil, tr)
	for _, data := range []string{recipes.TokenSoup, "\f" + recipes.TokenShowAll, "category_drinks"} {
		if err := b.Handle(newFakeContext(press(9, data))); err != nil {
			t.Fatalf("%q: %v", data, err)
		}
	}
	if !strings.HasPrefix(tr.replies[0].Text, "Here is a soup recipe:") {
		t.Fatalf("soup = %q", tr.replies[0].Text)
	}
	if !strings.HasPrefix(tr.replies[1].Text, "Here are all the available categories:") {
		t.Fatalf("show all = %q", tr.replies[1].Text)
	}
	if tr.replies[2].Text != "Sorry, I don't have a recipe for this category." {
		t.Fatalf("unknown = %q", tr.replies[2].Text)
	}
}

func TestHandleIgnoresEmptyUpdates(t *testing.T) {
	tr := &fakeTransport{}
	b := New(nil, tr)
	for _, upd := range []tele.Update{
		{ID: 3},
		text(5, "Ana", ""),
		press(5, ""),
		{ID: 4, Callback: &tele.Callback{Data: recipes.TokenSoup}},
	} {
		if err := b.Handle(newFakeContext(upd)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(tr.replies) != 0 {
		t.Fatalf("unexpected replies %+v", tr.replies)
	}
}

func TestHandleTransportErrors(t *testing.T) {
	boom := errors.New("network down")
	b := New(nil, &fakeTransport{err: boom})
	if err := b.Handle(newFakeContext(text(1, "Ana", "soup"))); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	b = New(nil, nil)
	if err := b.Handle(newFakeContext(text(1, "Ana", "soup"))); !errors.Is(err, ErrNoTransport) {
		t.Fatalf("err = %v", err)
	}
	tr := &fakeTransport{}
	b.Attach(tr)
	if err := b.Handle(newFakeContext(text(1, "Ana", "soup"))); err != nil || len(tr.replies) != 1 {
		t.Fatalf("after attach: err=%v replies=%d", err, len(tr.replies))
	}
}

func TestRegister(t *testing.T) {
	reg := tg.NewRegistry()
	b := New(nil, &fakeTransport{})
	if err := b.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, ok := reg.LookupCommand("/START"); !ok {
		t.Fatal("/start not registered")
	}
	if got := len(reg.ListCallbacks()); got != len(recipes.CallbackTokens()) {
		t.Fatalf("callbacks = %d", got)
	}
	if reg.TextFallback() == nil {
		t.Fatal("text fallback not set")
	}
	if err := b.Register(reg); err == nil {
		t.Fatal("second registration must fail on duplicate callbacks")
	}
	if err := b.Register(nil); err == nil {
		t.Fatal("expected error for nil registry")
	}
}

func TestUpdateFromTele(t *testing.T) {
	got := UpdateFromTele(text(10, "Ana", "Soup"))
	if got != (recipes.TextMessage{ChatID: 10, SenderName: "Ana", Text: "Soup"}) {
		t.Fatalf("text update = %#v", got)
	}
	got = UpdateFromTele(press(11, "\fcategory_meat"))
	if got != (recipes.CallbackEvent{ChatID: 11, Data: "category_meat"}) {
		t.Fatalf("callback update = %#v", got)
	}
	if UpdateFromTele(tele.Update{}) != nil {
		t.Fatal("empty update must map to nil")
	}
}

func TestMarkup(t *testing.T) {
	if Markup(nil) != nil {
		t.Fatal("empty keyboard must not produce markup")
	}
	m := Markup(recipes.BuildMenu())
	if len(m.InlineKeyboard) != 3 || len(m.InlineKeyboard[0]) != 2 || len(m.InlineKeyboard[2]) != 1 {
		t.Fatalf("layout = %+v", m.InlineKeyboard)
	}
	if btn := m.InlineKeyboard[1][1]; btn.Text != "Desserts 🍰" || btn.Data != recipes.TokenDesserts {
		t.Fatalf("button = %+v", btn)
	}
}

type recordingSender struct {
	to     tele.Recipient
	what   interface{}
	markup *tele.ReplyMarkup
	err    error
}

func (r *recordingSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.to, r.what = to, what
	for _, o := range opts {
		if m, ok := o.(*tele.ReplyMarkup); ok {
			r.markup = m
		}
	}
	return &tele.Message{}, nil
}

func TestTeleTransportSend(t *testing.T) {
	tghelpers.SetDispatcher(nil)
	api := &recordingSender{}
	m := metrics.New()
	tr := NewTeleTransport(api, m)
	err := tr.Send(context.Background(), recipes.Reply{ChatID: 77, Text: "hi", Keyboard: recipes.BuildMenu(), Kind: recipes.ReplyGreeting})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if api.to.Recipient() != "77" || api.what != "hi" || api.markup == nil {
		t.Fatalf("sent to=%v what=%v markup=%v", api.to, api.what, api.markup)
	}
	if got := repliesCounted(t, m, recipes.ReplyGreeting); got != 1 {
		t.Fatalf("replies counted = %v, want 1", got)
	}
}

func TestTeleTransportCountsOnlyAcceptedReplies(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1, Metrics: metrics.New()})
	tghelpers.SetDispatcher(d)
	t.Cleanup(func() { tghelpers.SetDispatcher(nil) })

	m := metrics.New()
	rejected := &recordingSender{err: &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}}
	if err := NewTeleTransport(rejected, m).Send(context.Background(), recipes.Reply{ChatID: 1, Text: "soup", Kind: recipes.ReplyRecipe}); err != nil {
		t.Fatalf("queue rejected reply: %v", err)
	}
	accepted := &recordingSender{}
	if err := NewTeleTransport(accepted, m).Send(context.Background(), recipes.Reply{ChatID: 2, Text: "soup", Kind: recipes.ReplyRecipe}); err != nil {
		t.Fatalf("queue accepted reply: %v", err)
	}
	d.Close()

	if got := repliesCounted(t, m, recipes.ReplyRecipe); got != 1 {
		t.Fatalf("replies counted = %v, want 1", got)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("send errors = %d, want 1", d.ErrorCount())
	}
}

func repliesCounted(t *testing.T, m *metrics.Metrics, kind recipes.ReplyKind) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != "recipebot_replies_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "kind" && lp.GetValue() == string(kind) {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
