package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string

	LogLevel  string
	LogFormat string

	JWTSecret string
	JWTExpiry time.Duration

	// Backend HTTP API collaborator.
	APIBaseURL       string
	BackendRPS       float64
	OpenRouterAPIKey string
	StripePublicKey  string

	StorageDir    string
	PublicBaseURL string
	// SpoolDir holds model uploads for the lifetime of their run. Keep it outside StorageDir.
	SpoolDir string

	RunWorkers     int
	RunTTL         time.Duration
	PipelineConfig string
	PipelineSeed   int64

	TrainerToken    string
	ShutdownTimeout time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Load reads configuration from the environment. A non-nil error means the
// config is usable for local runs only; callers decide whether that is fatal.
func Load() (Config, error) {
	cfg := LoadWithDefaults()
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	return cfg, cfg.Validate()
}

// LoadWithDefaults reads the environment without requiring secrets. Useful for tests.
func LoadWithDefaults() Config {
	return Config{
		Env:              getenv("APP_ENV", "development"),
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "json"),
		JWTSecret:        getenv("JWT_SECRET", "development-secret-key-min-32-chars"),
		JWTExpiry:        getenvDuration("JWT_EXPIRY", 24*time.Hour),
		APIBaseURL:       os.Getenv("API_BASE_URL"),
		BackendRPS:       getenvFloat("BACKEND_RPS", 5),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		StripePublicKey:  os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StorageDir:       getenv("STORAGE_DIR", "./data/storage"),
		PublicBaseURL:    getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		SpoolDir:         getenv("SPOOL_DIR", "./data/spool"),
		RunWorkers:       getenvInt("RUN_WORKERS", 2),
		RunTTL:           getenvDuration("RUN_TTL", time.Hour),
		PipelineConfig:   os.Getenv("PIPELINE_CONFIG"),
		PipelineSeed:     getenvInt64("PIPELINE_SEED", 0),
		TrainerToken:     os.Getenv("TRAINER_TOKEN"),
		ShutdownTimeout:  getenvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

// Validate checks the values the server cannot run without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.RunWorkers < 0 {
		return fmt.Errorf("RUN_WORKERS must not be negative")
	}
	if c.SpoolDir != "" && within(c.StorageDir, c.SpoolDir) {
		return fmt.Errorf("SPOOL_DIR must not be inside STORAGE_DIR")
	}
	return nil
}

// within reports whether dir is root or below it.
func within(root, dir string) bool {
	rootAbs, err1 := filepath.Abs(root)
	dirAbs, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, dirAbs)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c Config) IsProduction() bool { return c.Env == "production" }
