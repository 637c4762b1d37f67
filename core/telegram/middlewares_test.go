package telegram

import (
	"testing"

	coreconfig "github.com/m3rciful/recipebot/core/config"
)

func middlewareNames(mws []Middleware) []string {
	names := make([]string, 0, len(mws))
	for _, mw := range mws {
		names = append(names, mw.Name)
	}
	return names
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	got := middlewareNames(DefaultMiddlewares(nil, nil))
	want := []string{"recover", "logger", "metrics"}
	if len(got) != len(want) {
		t.Fatalf("middlewares = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("middlewares = %v, want %v", got, want)
		}
	}

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500}}
	got = middlewareNames(DefaultMiddlewares(cfg, nil))
	if len(got) != 4 || got[1] != "rate_limit" {
		t.Fatalf("middlewares with rate limit = %v", got)
	}
}

func TestDispatcherOptionsFromConfig(t *testing.T) {
	opts := DispatcherOptionsFromConfig(coreconfig.SenderConfig{
		QueueSize:      16,
		Workers:        2,
		MaxRetries:     1,
		RetryBackoffMS: 250,
		MaxDurationMS:  3000,
	})
	if opts.QueueSize != 16 || opts.Workers != 2 || opts.MaxRetries != 1 {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.RetryBackoff.Milliseconds() != 250 || opts.MaxDuration.Milliseconds() != 3000 {
		t.Fatalf("durations = %s / %s", opts.RetryBackoff, opts.MaxDuration)
	}
}
