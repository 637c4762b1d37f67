// Package app wires configuration, the recipe catalog and the Telegram runtime together.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/recipebot/core/bootstrap"
	tg "github.com/m3rciful/recipebot/core/telegram"
	"github.com/m3rciful/recipebot/core/telegram/router"
	"github.com/m3rciful/recipebot/internal/catalog"
	"github.com/m3rciful/recipebot/internal/recipebot"
	"github.com/m3rciful/recipebot/internal/recipes"
)

// App holds the long-lived pieces built at startup.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	registry *tg.Registry
	bot      *recipebot.Bot
}

// Bootstrap initializes logging, the optional database and the recipe catalog.
func Bootstrap(cfg *Config) (*App, error) {
	return bootstrapWith(cfg, bootstrap.Options{})
}

func bootstrapWith(cfg *Config, opts bootstrap.Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	opts.Config = cfg.CoreConfig()
	if cfg.usesDatabase() {
		dbCfg := cfg.Database
		opts.Database = &dbCfg
	}
	res, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}

	var q catalog.Querier
	if res.DB != nil {
		q = res.DB
	}
	store, err := catalog.Load(context.Background(), cfg.Catalog, q)
	if err != nil {
		closeDB(res.DB)
		return nil, err
	}

	bot := recipebot.New(recipes.NewDispatcher(store), nil)
	reg := tg.NewRegistry()
	if err := bot.Register(reg); err != nil {
		closeDB(res.DB)
		return nil, err
	}

	return &App{cfg: cfg, db: res.DB, registry: reg, bot: bot}, nil
}

// TelegramRunOptions describes routes, middleware and lifecycle hooks for the runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.TextRoutes(a.registry, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(a.registry))

	return tg.RunOptions{
		Config:            core,
		Registry:          a.registry,
		DispatcherOptions: tg.DispatcherOptionsFromConfig(core.Sender),
		Middlewares:       tg.DefaultMiddlewares(core, nil),
		Routes:            routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			if rt.Bot == nil {
				return fmt.Errorf("app: runtime has no bot")
			}
			a.bot.Attach(recipebot.NewTeleTransport(rt.Bot, nil))
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close releases the database connection, if any.
func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	db := a.db
	a.db = nil
	return db.Close()
}

func closeDB(db *sqlx.DB) {
	if db != nil {
		_ = db.Close()
	}
}
