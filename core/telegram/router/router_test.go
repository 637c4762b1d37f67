package router

import (
	"errors"
	"testing"

	tg "github.com/m3rciful/recipebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	update    tele.Update
	store     map[string]interface{}
	responded int
}

func newFakeContext(upd tele.Update) *fakeContext {
	return &fakeContext{update: upd, store: map[string]interface{}{}}
}

func (f *fakeContext) Update() tele.Update { return f.update }

func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, val interface{}) { f.store[key] = val }

func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.responded++
	return nil
}

func (f *fakeContext) Text() string {
	if f.update.Message != nil {
		return f.update.Message.Text
	}
	return ""
}

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

func textUpdate(text string) tele.Update {
	return tele.Update{ID: 1, Message: &tele.Message{
		Text:   text,
		Chat:   &tele.Chat{ID: 100},
		Sender: &tele.User{ID: 200, FirstName: "Ana"},
	}}
}

func callbackUpdate(data string) tele.Update {
	return tele.Update{ID: 2, Callback: &tele.Callback{
		Data:    data,
		Sender:  &tele.User{ID: 200},
		Message: &tele.Message{Chat: &tele.Chat{ID: 100}},
	}}
}

func TestTextRoutesDispatchCommandAnyCase(t *testing.T) {
	var started, fallback int
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", tg.Command{
		Description: "Show the menu",
		Handler:     func(tele.Context) error { started++; return nil },
	})
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	route := TextRoutes(reg, TextOptions{})[0]
	if route.Endpoint != tele.OnText {
		t.Fatalf("endpoint = %v", route.Endpoint)
	}
	for _, text := range []string{"/START", "/Start", "soup", "Pizza"} {
		if err := route.Handler(newFakeContext(textUpdate(text))); err != nil {
			t.Fatalf("%q: %v", text, err)
		}
	}
	if started != 2 || fallback != 2 {
		t.Fatalf("started=%d fallback=%d", started, fallback)
	}
}

func TestTextRoutesPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	reg := tg.NewRegistry()
	reg.SetTextFallback(func(tele.Context) error { return boom })
	route := TextRoutes(reg, TextOptions{})[0]
	if err := route.Handler(newFakeContext(textUpdate("soup"))); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestTextRoutesWithoutHandlers(t *testing.T) {
	var unknown int
	route := TextRoutes(nil, TextOptions{UnknownText: func(tele.Context) error { unknown++; return nil }})[0]
	if err := route.Handler(newFakeContext(textUpdate("soup"))); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if unknown != 1 {
		t.Fatalf("unknown = %d", unknown)
	}
	if err := TextRoutes(nil, TextOptions{})[0].Handler(newFakeContext(textUpdate("x"))); err != nil {
		t.Fatalf("bare route: %v", err)
	}
}

func TestCallbackRouteRegisteredAndMissing(t *testing.T) {
	var soup, missing int
	reg := tg.NewRegistry()
	if err := reg.RegisterCallback("category_soup", func(tele.Context) error { soup++; return nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.SetCallbackNotFound(func(tele.Context) error { missing++; return nil })

	route := CallbackRoute(reg)
	if route.Endpoint != tele.OnCallback {
		t.Fatalf("endpoint = %v", route.Endpoint)
	}
	for _, data := range []string{"category_soup", "\fcategory_soup", "category_drinks"} {
		c := newFakeContext(callbackUpdate(data))
		if err := route.Handler(c); err != nil {
			t.Fatalf("%q: %v", data, err)
		}
		if c.responded != 1 {
			t.Fatalf("%q: callback not acknowledged", data)
		}
	}
	if soup != 2 || missing != 1 {
		t.Fatalf("soup=%d missing=%d", soup, missing)
	}
}

func TestCommandRoutesWrapHandlers(t *testing.T) {
	var calls int
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", tg.Command{
		Description: "Show the menu",
		Handler:     func(tele.Context) error { calls++; return nil },
	})
	routes := CommandRoutes(reg)
	if len(routes) != 1 || routes[0].Endpoint != "/start" {
		t.Fatalf("routes = %+v", routes)
	}
	if err := routes[0].Handler(newFakeContext(textUpdate("/start"))); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
	if CommandRoutes(nil) != nil {
		t.Fatal("nil registry must yield no routes")
	}
}

func TestDeriveErrorCode(t *testing.T) {
	if got := deriveErrorCode(&tele.Error{Code: 400}); got != "ERROR" {
		t.Fatalf("code = %q", got)
	}
	if got := deriveErrorCode(nil); got != "" {
		t.Fatalf("code = %q", got)
	}
	if got := normalizeHandlerName("/Start Now"); got != "start_now" {
		t.Fatalf("name = %q", got)
	}
}
