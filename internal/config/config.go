package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDatabaseURL = "sqlite://./data/lifequest.db"

type APIConfig struct {
	Addr               string
	DatabaseURL        string
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiTemperature  float64
	NarrativeTimeout   time.Duration
	CrisesFile         string
	AuthCacheTTL       time.Duration
}

// WorkerConfig drives the maintenance worker.
type WorkerConfig struct {
	DatabaseURL       string
	Every             time.Duration
	IdempotencyKeyTTL time.Duration
	RunOnce           bool
}

type CLIConfig struct {
	APIBaseURL string
	Home       string
}

// LoadDotEnv loads .env from the working directory when present; variables
// already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("LIFEQUEST_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:               addr,
		DatabaseURL:        envDefault("DATABASE_URL", defaultDatabaseURL),
		SupabaseURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseAnonKey:    strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		SupabaseServiceKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
		GeminiAPIKey:       firstEnv("GEMINI_API_KEY", "API_KEY"),
		GeminiModel:        envDefault("LIFEQUEST_GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTemperature:  envFloatDefault("LIFEQUEST_GEMINI_TEMPERATURE", 0.9),
		NarrativeTimeout:   envDurationDefault("LIFEQUEST_NARRATIVE_TIMEOUT", 20*time.Second),
		CrisesFile:         strings.TrimSpace(os.Getenv("LIFEQUEST_CRISES_FILE")),
		AuthCacheTTL:       envDurationDefault("LIFEQUEST_AUTH_CACHE_TTL", time.Minute),
	}
	if cfg.SupabaseURL == "" {
		return cfg, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return cfg, fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if cfg.NarrativeTimeout <= 0 {
		return cfg, fmt.Errorf("LIFEQUEST_NARRATIVE_TIMEOUT must be positive")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:       envDefault("DATABASE_URL", defaultDatabaseURL),
		Every:             envDurationDefault("LIFEQUEST_WORKER_EVERY", time.Hour),
		IdempotencyKeyTTL: envDurationDefault("LIFEQUEST_IDEMPOTENCY_TTL", 30*24*time.Hour),
		RunOnce:           strings.EqualFold(strings.TrimSpace(os.Getenv("LIFEQUEST_WORKER_RUN_ONCE")), "true"),
	}
	if cfg.Every <= 0 {
		return cfg, fmt.Errorf("LIFEQUEST_WORKER_EVERY must be positive")
	}
	if cfg.IdempotencyKeyTTL < time.Hour {
		return cfg, fmt.Errorf("LIFEQUEST_IDEMPOTENCY_TTL must be at least 1h")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	home := strings.TrimSpace(os.Getenv("LQ_HOME"))
	if home == "" {
		if dir, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(dir, ".lq")
		} else {
			home = ".lq"
		}
	}
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("LQ_API_BASE_URL", "http://localhost:8080"), "/"),
		Home:       home,
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
