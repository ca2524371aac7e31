package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_ConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: "9090"
  mode: debug
database:
  redis:
    addr: "redis:6379"
    db: 2
pizza_api:
  menu_ttl_minutes: 5
chat:
  history_limit: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected server.port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Database.Redis.Addr != "redis:6379" || cfg.Database.Redis.DB != 2 {
		t.Fatalf("unexpected redis config: %+v", cfg.Database.Redis)
	}
	if cfg.PizzaAPI.MenuTTL() != 5*time.Minute {
		t.Fatalf("expected menu ttl 5m, got %s", cfg.PizzaAPI.MenuTTL())
	}
	if cfg.Chat.HistoryLimit != 10 {
		t.Fatalf("expected history limit 10, got %d", cfg.Chat.HistoryLimit)
	}
	// 未在文件中出现的键使用默认值
	if cfg.LLM.Model != "gpt-4" {
		t.Fatalf("expected default model gpt-4, got %q", cfg.LLM.Model)
	}
	if cfg.PizzaAPI.BaseURL != "https://react-fast-pizza-api.onrender.com/api" {
		t.Fatalf("unexpected default pizza api base url %q", cfg.PizzaAPI.BaseURL)
	}
	if cfg.Chat.DraftTTL() != 30*time.Minute {
		t.Fatalf("expected default draft ttl 30m, got %s", cfg.Chat.DraftTTL())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "llm:\n  model: gpt-4\n")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("expected api key from OPENAI_API_KEY, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("expected model override, got %q", cfg.LLM.Model)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "prompts.yaml", `
system: "You sell pizza."
order:
  phone: "Phone please?"
`)

	p, err := LoadPrompts(path)
	if err != nil {
		t.Fatalf("LoadPrompts returned error: %v", err)
	}
	if p.System != "You sell pizza." {
		t.Fatalf("system prompt not overridden: %q", p.System)
	}
	if p.Order.Phone != "Phone please?" {
		t.Fatalf("phone prompt not overridden: %q", p.Order.Phone)
	}
	def := DefaultPrompts()
	if p.Order.Name != def.Order.Name {
		t.Fatalf("expected default name prompt, got %q", p.Order.Name)
	}
	if p.Triggers.PlaceOrder != "place an order" {
		t.Fatalf("expected default trigger, got %q", p.Triggers.PlaceOrder)
	}
}

func TestLoadPrompts_MissingFileUsesDefaults(t *testing.T) {
	p, err := LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadPrompts returned error: %v", err)
	}
	if p != DefaultPrompts() {
		t.Fatal("expected default prompts")
	}
}

func TestLoadPrompts_EmptyTriggersUseDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.yaml", "triggers:\n  how_to_order: \"\"\n  place_order: \"  \"\n")

	p, err := LoadPrompts(path)
	if err != nil {
		t.Fatalf("LoadPrompts returned error: %v", err)
	}
	def := DefaultPrompts()
	if p.Triggers != def.Triggers {
		t.Fatalf("expected default triggers, got %+v", p.Triggers)
	}
}

func TestShippedConfigStartsWithoutOptionalBackends(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.MySQL.DSN != "" {
		t.Fatalf("shipped config must not require MySQL, dsn=%q", cfg.Database.MySQL.DSN)
	}
	if cfg.Kafka.Brokers != "" {
		t.Fatalf("shipped config must not require Kafka, brokers=%q", cfg.Kafka.Brokers)
	}
}
