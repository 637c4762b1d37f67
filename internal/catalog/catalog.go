// Package catalog builds the recipe Store from its configured source.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/recipebot/core/logger"
	"github.com/m3rciful/recipebot/internal/recipes"
)

const (
	// SourceBuiltin serves the recipes compiled into the binary.
	SourceBuiltin = "builtin"
	// SourcePostgres loads the recipes table once at startup.
	SourcePostgres = "postgres"
)

const selectRecipes = `SELECT name, instructions FROM recipes ORDER BY id`

// Config selects where recipes come from.
type Config struct {
	Source string `yaml:"source" envconfig:"CATALOG_SOURCE"`
}

// Normalize lowercases Source and fills the default.
func (c *Config) Normalize() error {
	src := strings.ToLower(strings.TrimSpace(c.Source))
	if src == "" {
		src = SourceBuiltin
	}
	switch src {
	case SourceBuiltin, SourcePostgres:
	default:
		return fmt.Errorf("invalid catalog.source %q; allowed: builtin, postgres", c.Source)
	}
	c.Source = src
	return nil
}

// Querier is the part of *sqlx.DB the loader needs.
type Querier interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type recipeRow struct {
	Name         string `db:"name"`
	Instructions string `db:"instructions"`
}

// dishPreview caps how many dish names the load summary lists.
const dishPreview = 10

// Load returns the Store for cfg. q is only used by the postgres source.
func Load(ctx context.Context, cfg Config, q Querier) (*recipes.Store, error) {
	start := time.Now()
	var (
		store *recipes.Store
		err   error
	)
	switch cfg.Source {
	case "", SourceBuiltin:
		store = recipes.DefaultStore()
	case SourcePostgres:
		store, err = LoadPostgres(ctx, q)
	default:
		err = fmt.Errorf("catalog: unknown source %q", cfg.Source)
	}
	if err != nil {
		logger.Error(ctx, logger.CompCatalog, "catalog.load",
			slog.String("status", "fail"),
			slog.String("source", cfg.Source),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	dishes, truncated := logger.SummarizeStrings(store.Names(), dishPreview)
	logger.Info(ctx, logger.CompCatalog, "catalog.load",
		slog.String("status", "ok"),
		slog.String("source", sourceName(cfg.Source)),
		slog.Int("recipes", store.Len()),
		slog.String("dishes", dishes),
		slog.Bool("dishes_truncated", truncated),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return store, nil
}

// LoadPostgres reads every row of the recipes table into a new Store.
func LoadPostgres(ctx context.Context, q Querier) (*recipes.Store, error) {
	if q == nil {
		return nil, fmt.Errorf("catalog: postgres source requires a database connection")
	}
	var rows []recipeRow
	if err := q.SelectContext(ctx, &rows, selectRecipes); err != nil {
		return nil, fmt.Errorf("catalog: select recipes: %w", err)
	}
	entries := make([]recipes.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, recipes.Entry{Name: r.Name, Instructions: r.Instructions})
	}
	store, err := recipes.NewStore(entries)
	if err != nil {
		return nil, fmt.Errorf("catalog: build store: %w", err)
	}
	return store, nil
}

func sourceName(src string) string {
	if src == "" {
		return SourceBuiltin
	}
	return src
}
