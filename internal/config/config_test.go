package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSONWithEnv(t *testing.T) {
	t.Setenv("OMNI_PG_DSN", "postgres://omni@db/omni")
	path := writeFile(t, "omni.json", `{
  "server": {"port": 9090},
  "cognition": {"cycle_interval": "15s", "error_cooldown": 2},
  "wallets": {"chain": "solana", "dry_run": true},
  "database": {
    "postgres": {"dsn": "${OMNI_PG_DSN}"},
    "redis": {"url": "${OMNI_REDIS_URL:redis://localhost:6379/0}"}
  },
  "providers": [{"id": "claude", "type": "anthropic", "api_key": "${OMNI_MISSING_KEY}"}]
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if got := cfg.Cognition.CycleInterval.D(); got != 15*time.Second {
		t.Errorf("cycle_interval = %v", got)
	}
	if got := cfg.Cognition.ErrorCooldown.D(); got != 2*time.Second {
		t.Errorf("numeric error_cooldown = %v, want seconds", got)
	}
	if cfg.Database.Postgres.DSN != "postgres://omni@db/omni" {
		t.Errorf("dsn = %q", cfg.Database.Postgres.DSN)
	}
	if cfg.Database.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("redis default not applied: %q", cfg.Database.Redis.URL)
	}
	if cfg.Providers[0].APIKey != "" {
		t.Errorf("unset variable should expand to empty, got %q", cfg.Providers[0].APIKey)
	}
	if cfg.Wallets.PaperBalance != 10 {
		t.Errorf("paper balance default = %v", cfg.Wallets.PaperBalance)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "omni.yaml", `
agent:
  name: omni-test
  research_topics: [defi, l2]
loops:
  research:
    enabled: true
    interval: 30m
gateway:
  discord:
    enabled: true
    bot_token: abc
    channels: ["123"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"defi", "l2"}, cfg.Agent.ResearchTopics); diff != "" {
		t.Errorf("research topics (-want +got):\n%s", diff)
	}
	if !cfg.Loops.Research.Enabled || cfg.Loops.Research.Interval.D() != 30*time.Minute {
		t.Errorf("research loop = %+v", cfg.Loops.Research)
	}
	if cfg.Loops.Investment.Interval.D() != time.Minute {
		t.Errorf("investment interval default = %v", cfg.Loops.Investment.Interval)
	}
	if cfg.Gateway.Discord.BotToken != "abc" {
		t.Errorf("discord token = %q", cfg.Gateway.Discord.BotToken)
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	want := CognitionConfig{
		CycleInterval: Duration(10 * time.Second),
		ErrorCooldown: Duration(5 * time.Second),
		CycleTimeout:  Duration(60 * time.Second),
		MaxRetries:    3,
	}
	if diff := cmp.Diff(want, cfg.Cognition); diff != "" {
		t.Errorf("cognition defaults (-want +got):\n%s", diff)
	}
	if cfg.Memory.ShortTermLimit != 100 || cfg.Memory.LongTermLimit != 1000 || cfg.Memory.DecayInterval.D() != time.Hour {
		t.Errorf("memory defaults = %+v", cfg.Memory)
	}
	if cfg.Context.TTL.D() != time.Hour || cfg.Context.HistoryLimit != 1000 {
		t.Errorf("context defaults = %+v", cfg.Context)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Memory.ShortTermLimit = -1
	cfg.Agent.TradeFraction = 2
	cfg.Wallets.Chain = "bitcoin"
	cfg.Providers = []ProviderConfig{{Type: "gemini"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"short_term_limit", "trade_fraction", "wallets.chain", "providers[0]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := writeFile(t, "bad.json", `{"cognition": {"cycle_interval": "soon"}}`)
	if _, err := Load(bad); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if Path() != DefaultPath {
		t.Errorf("Path() = %q", Path())
	}
	t.Setenv("CONFIG_PATH", "/etc/omni.yaml")
	if Path() != "/etc/omni.yaml" {
		t.Errorf("Path() = %q", Path())
	}
}
