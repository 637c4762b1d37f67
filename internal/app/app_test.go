package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/recipebot/core/bootstrap"
	coreconfig "github.com/m3rciful/recipebot/core/config"
	coredatabase "github.com/m3rciful/recipebot/core/database"
	tg "github.com/m3rciful/recipebot/core/telegram"
	"github.com/m3rciful/recipebot/internal/catalog"

	tele "gopkg.in/telebot.v4"
)

const sampleConfig = `
telegram:
  token: "123:file-token"
  run_mode: polling
logging:
  level: debug
  format: kv
catalog:
  source: Builtin
database:
  host: localhost
  port: "5432"
  name: recipes
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:file-token" || cfg.Telegram.RunMode != coreconfig.RunModeLongpoll {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Catalog.Source != catalog.SourceBuiltin {
		t.Fatalf("catalog source = %q", cfg.Catalog.Source)
	}
	if cfg.Database.Name != "recipes" || cfg.usesDatabase() {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.CoreConfig() != &cfg.Config {
		t.Fatal("CoreConfig must point at the embedded config")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:env-token")
	t.Setenv("CATALOG_SOURCE", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "999:env-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if !cfg.usesDatabase() || cfg.Database.Host != "db.internal" {
		t.Fatalf("catalog=%q host=%q", cfg.Catalog.Source, cfg.Database.Host)
	}
}

func TestLoadConfigRejectsUnknownSource(t *testing.T) {
	t.Setenv("CATALOG_SOURCE", "sqlite")
	if _, err := LoadConfig(writeConfig(t, sampleConfig)); err == nil {
		t.Fatal("expected error for unknown catalog source")
	}
}

func testConfig(source string) *Config {
	return &Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "1:x", RunMode: coreconfig.RunModeLongpoll},
		},
		Catalog: catalog.Config{Source: source},
	}
}

func quietLogger(*coreconfig.Config) error { return nil }

func TestBootstrapBuiltinAndRunOptions(t *testing.T) {
	a, err := bootstrapWith(testConfig(catalog.SourceBuiltin), bootstrap.Options{
		LoggerInit: quietLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("builtin catalog must not connect to a database")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(a.registry.ListCallbacks()) != 5 {
		t.Fatalf("callbacks = %v", a.registry.ListCallbacks())
	}

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	if len(opts.Routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(opts.Routes))
	}
	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", tele.OnText, tele.OnCallback} {
		if !endpoints[want] {
			t.Fatalf("missing route %v", want)
		}
	}

	if err := opts.OnStart(context.Background(), tg.Runtime{}); err == nil {
		t.Fatal("expected error when runtime has no bot")
	}
	bot, err := tele.NewBot(tele.Settings{Token: "1:x", Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	if err := opts.OnStart(context.Background(), tg.Runtime{Bot: bot}); err != nil {
		t.Fatalf("on start: %v", err)
	}
	if err := opts.OnStop(context.Background(), tg.Runtime{Bot: bot}); err != nil {
		t.Fatalf("on stop: %v", err)
	}
}

func TestBootstrapPostgresFailsOnMigration(t *testing.T) {
	boom := errors.New("db down")
	_, err := bootstrapWith(testConfig(catalog.SourcePostgres), bootstrap.Options{
		LoggerInit: quietLogger,
		Migrate:    func(coredatabase.Config) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Bootstrap(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
