package app

import (
	coreconfig "github.com/m3rciful/recipebot/core/config"
	coredatabase "github.com/m3rciful/recipebot/core/database"
	"github.com/m3rciful/recipebot/internal/catalog"
)

// Config is the full recipebot configuration: the core sections plus the catalog and database.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Catalog  catalog.Config      `yaml:"catalog"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, overlays the environment, resolves the token and validates.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.ResolveToken(&cfg.Config); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Catalog.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) usesDatabase() bool {
	return c.Catalog.Source == catalog.SourcePostgres
}
