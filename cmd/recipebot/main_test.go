package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "recipebot dev") {
		t.Fatalf("output = %q", out)
	}
}

func TestConfigCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: \"1:abc\"\ncatalog:\n  source: BUILTIN\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := execute(t, "", "config", "check", "--config", path)
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	for _, want := range []string{"run_mode: longpoll", "catalog:  builtin", "OK"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestConfigCheckReportsInvalidConfig(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("telegram:\n  run_mode: longpoll\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "", "config", "check", "-c", path); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestConfigCheckReadsEnvFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	os.Unsetenv("BOT_TOKEN")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("catalog:\n  source: builtin\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(dir, "bot.env")
	if err := os.WriteFile(envPath, []byte("BOT_TOKEN=123:abc\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	out, err := execute(t, "", "config", "check", "-c", cfgPath, "--env-file", envPath)
	if err != nil {
		t.Fatalf("config check with env file: %v", err)
	}
	if !strings.Contains(out, "OK") {
		t.Fatalf("output = %q", out)
	}
}

func TestTokenSet(t *testing.T) {
	keyring.MockInit()
	out, err := execute(t, "42:secret\n", "token", "set", "--service", "recipebot-test")
	if err != nil {
		t.Fatalf("token set: %v", err)
	}
	if !strings.Contains(out, "recipebot-test") {
		t.Fatalf("output = %q", out)
	}
	got, err := keyring.Get("recipebot-test", "bot_token")
	if err != nil || got != "42:secret" {
		t.Fatalf("keyring = %q, %v", got, err)
	}
}

func TestReadTokenRejectsEmpty(t *testing.T) {
	if _, err := readToken(strings.NewReader("\n")); err == nil {
		t.Fatal("expected error")
	}
	if got, err := readToken(strings.NewReader("  9:x")); err != nil || got != "9:x" {
		t.Fatalf("token = %q, %v", got, err)
	}
}
