package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lifequest/internal/game"
)

func TestDefaultCrises(t *testing.T) {
	crises, err := LoadCrises("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(crises) < 2 {
		t.Fatalf("crises=%d", len(crises))
	}
	for _, c := range crises {
		if c.Duration <= 0 || c.CurrentMonth != 0 || c.Log != nil {
			t.Fatalf("bad template %+v", c)
		}
		if c.Effects.IncomeReduction < 0 || c.Effects.IncomeReduction > 1 {
			t.Fatalf("%s: income reduction %v", c.Name, c.Effects.IncomeReduction)
		}
	}
	if crises[0].Name != "Great Recession" || crises[0].Effects.AssetVolatility != -0.3 {
		t.Fatalf("first crisis=%+v", crises[0])
	}
}

func TestParseCrisesRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ``},
		{name: "zero duration", doc: "[[crisis]]\nname = \"Flat\"\nduration = 0\n"},
		{name: "missing name", doc: "[[crisis]]\nduration = 3\n"},
		{name: "unknown key", doc: "[[crisis]]\nname = \"X\"\nduration = 3\nseverity = 9\n"},
		{name: "duplicate", doc: "[[crisis]]\nname = \"X\"\nduration = 3\n[[crisis]]\nname = \"X\"\nduration = 2\n"},
		{name: "syntax", doc: "[[crisis]\n"},
	}
	for _, tc := range tests {
		if _, err := ParseCrises([]byte(tc.doc), "test"); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	_, err := ParseCrises([]byte("[[crisis]]\nduration = 3\n"), "test")
	if !errors.Is(err, game.ErrUnknownCrisis) {
		t.Fatalf("got %v want ErrUnknownCrisis", err)
	}
}

func TestLoadCrisesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crises.toml")
	doc := "[[crisis]]\nname = \"Drought\"\nduration = 2\nsurvival_threshold = 1000\n[crisis.effects]\nexpense_increase = 0.5\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	crises, err := LoadCrises(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(crises) != 1 || crises[0].Effects.ExpenseIncrease != 0.5 || crises[0].SurvivalThreshold != 1000 {
		t.Fatalf("crises=%+v", crises)
	}
	if _, err := LoadCrises(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadAPIFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("LIFEQUEST_NARRATIVE_TIMEOUT", "5s")
	t.Setenv("LIFEQUEST_GEMINI_TEMPERATURE", "not-a-number")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.SupabaseURL != "https://example.supabase.co" || cfg.DatabaseURL != "sqlite://./data/lifequest.db" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.NarrativeTimeout != 5*time.Second || cfg.GeminiTemperature != 0.9 {
		t.Fatalf("timeout=%v temperature=%v", cfg.NarrativeTimeout, cfg.GeminiTemperature)
	}

	t.Setenv("SUPABASE_ANON_KEY", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected error without SUPABASE_ANON_KEY")
	}
}

func TestLoadCLIFromEnv(t *testing.T) {
	t.Setenv("LQ_HOME", "/tmp/lq-test")
	t.Setenv("LQ_API_BASE_URL", "http://api.local/")
	cfg := LoadCLIFromEnv()
	if cfg.Home != "/tmp/lq-test" || cfg.APIBaseURL != "http://api.local" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadWorkerFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LIFEQUEST_WORKER_EVERY", "")
	t.Setenv("LIFEQUEST_IDEMPOTENCY_TTL", "")
	t.Setenv("LIFEQUEST_WORKER_RUN_ONCE", "TRUE")
	cfg, err := LoadWorkerFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != defaultDatabaseURL || cfg.Every != time.Hour || cfg.IdempotencyKeyTTL != 30*24*time.Hour || !cfg.RunOnce {
		t.Fatalf("cfg=%+v", cfg)
	}

	t.Setenv("LIFEQUEST_IDEMPOTENCY_TTL", "5m")
	if _, err := LoadWorkerFromEnv(); err == nil {
		t.Fatalf("expected a short ttl to be rejected")
	}
}
