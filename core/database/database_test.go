package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigConnectionStrings(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "pw", Name: "recipes"}
	if got, want := cfg.DSN(), "user=bot password=pw host=db port=5432 dbname=recipes sslmode=disable"; got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	cfg.SSLMode = "require"
	if got, want := cfg.URL(), "postgres://bot:pw@db:5432/recipes?sslmode=require"; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
	if cfg.migrationsDir() != "migrations" {
		t.Fatalf("migrations dir = %q", cfg.migrationsDir())
	}
}

func TestMigrationFileHelpers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_add_index.up.sql",
		"000001_create_recipes.up.sql",
		"000001_create_recipes.down.sql",
		"README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	files := listMigrationFiles(dir)
	if len(files) != 2 || files[0] != "000001_create_recipes.up.sql" {
		t.Fatalf("files = %v", files)
	}
	if v := parseVersion(files[1]); v != 2 {
		t.Fatalf("version = %d", v)
	}
	if n := len(selectApplied(files, 0, 2)); n != 2 {
		t.Fatalf("applied = %d", n)
	}
	if n := len(selectApplied(files, 2, 2)); n != 0 {
		t.Fatalf("applied = %d", n)
	}
	if got := selectApplied(files, 1, 2); len(got) != 1 || got[0] != "000002_add_index.up.sql" {
		t.Fatalf("selected = %v", got)
	}
}
