package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	StoreBackend      string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	SessionSigningKey string        `mapstructure:"SESSION_SIGNING_KEY"`
	SessionTokenTTL   time.Duration `mapstructure:"SESSION_TOKEN_TTL"`
	SandboxEmail      string        `mapstructure:"SANDBOX_EMAIL"`
	SandboxPassword   string        `mapstructure:"SANDBOX_PASSWORD"`
	SeedFixtures      bool          `mapstructure:"SEED_FIXTURES"`
	LoginPath         string        `mapstructure:"LOGIN_PATH"`
	OverviewPath      string        `mapstructure:"OVERVIEW_PATH"`
	KafkaBrokers      []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string        `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID      string        `mapstructure:"KAFKA_GROUP_ID"`
	ArchiveBucket     string        `mapstructure:"ARCHIVE_BUCKET"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MIGRATIONS_DIR", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"SESSION_SIGNING_KEY", "SESSION_TOKEN_TTL", "SANDBOX_EMAIL", "SANDBOX_PASSWORD",
	"SEED_FIXTURES", "LOGIN_PATH", "OVERVIEW_PATH", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"KAFKA_GROUP_ID", "ARCHIVE_BUCKET",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("SESSION_TOKEN_TTL", "12h")
	v.SetDefault("SANDBOX_EMAIL", "admin@example.com")
	v.SetDefault("SANDBOX_PASSWORD", "password")
	v.SetDefault("SEED_FIXTURES", true)
	v.SetDefault("LOGIN_PATH", "/login")
	v.SetDefault("OVERVIEW_PATH", "/overview")
	v.SetDefault("KAFKA_TOPIC", "agent-action-updates")
	v.SetDefault("KAFKA_GROUP_ID", "care-dashboard")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.StoreBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
	}

	if cfg.IsDev() && cfg.SessionSigningKey == "" {
		log.Println("WARNING: SESSION_SIGNING_KEY is not set; sessions are resolved from the session_id parameter alone.")
	}

	return cfg, nil
}

// splitList normalizes comma-separated env values that viper leaves as a
// single element.
func splitList(current []string, raw string) []string {
	if len(current) > 1 {
		return current
	}
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UseMemoryStore reports whether the in-process store backs the service.
func (c *Config) UseMemoryStore() bool {
	return c.StoreBackend == BackendMemory
}

// KafkaEnabled reports whether agent action updates are consumed from Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// SigningKey decodes SESSION_SIGNING_KEY. A nil key means token checks are off.
func (c *Config) SigningKey() []byte {
	if c.SessionSigningKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.SessionSigningKey)
	if err != nil {
		return nil
	}
	return key
}

// Validate checks that the configuration is safe to run. Production requires
// a signing key so session ids cannot be forged from the query string.
func (c *Config) Validate() error {
	if c.StoreBackend != BackendPostgres && c.StoreBackend != BackendMemory {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}

	if c.IsProduction() && c.SessionSigningKey == "" {
		return fmt.Errorf("SESSION_SIGNING_KEY is required in production")
	}
	if c.SessionSigningKey != "" {
		keyBytes, err := hex.DecodeString(c.SessionSigningKey)
		if err != nil {
			return fmt.Errorf("SESSION_SIGNING_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) < 32 {
			return fmt.Errorf("SESSION_SIGNING_KEY must be at least 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.SessionTokenTTL <= 0 {
		return fmt.Errorf("SESSION_TOKEN_TTL must be positive, got %s", c.SessionTokenTTL)
	}
	if c.SandboxEmail == "" || c.SandboxPassword == "" {
		return fmt.Errorf("SANDBOX_EMAIL and SANDBOX_PASSWORD must both be set")
	}
	if !strings.HasPrefix(c.LoginPath, "/") || !strings.HasPrefix(c.OverviewPath, "/") {
		return fmt.Errorf("LOGIN_PATH and OVERVIEW_PATH must be absolute paths")
	}

	return nil
}
