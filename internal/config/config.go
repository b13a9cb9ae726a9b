// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., GEMINI_API_KEY, BREAKER_RESET_TIMEOUT).
type EnvConfig struct {
	// Host is the server host to bind to.
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// Port is the server port to listen on.
	Port int `envconfig:"PORT" default:"8080"`

	// DBURL is the database connection URL (sqlite:///path or postgres://...).
	DBURL string `envconfig:"DB_URL" default:"sqlite:///crm-enricher.db"`

	DBPool DBPoolEnv `envconfig:"DB_POOL"`

	// LogLevel is DEBUG, INFO, WARN or ERROR.
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
	// LogFormat is text or json.
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	Gemini GeminiEnv `envconfig:"GEMINI"`

	// ProviderTimeout bounds a single provider call.
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"45s"`

	Breaker BreakerEnv `envconfig:"BREAKER"`

	// StaleAfter is how long a processing status may persist before it counts as abandoned.
	StaleAfter time.Duration `envconfig:"STALE_AFTER" default:"2m"`

	// RunTimeout bounds a whole background run including credential failover.
	RunTimeout time.Duration `envconfig:"RUN_TIMEOUT" default:"90s"`

	Kafka KafkaEnv `envconfig:"KAFKA"`

	Backfill BackfillEnv `envconfig:"BACKFILL"`
}

// GeminiEnv configures the provider.
type GeminiEnv struct {
	// APIKey is the primary credential. Env: GEMINI_API_KEY
	APIKey string `envconfig:"API_KEY"`
	// APIKeyBackup is tried when the primary is out of quota. Env: GEMINI_API_KEY_BACKUP
	APIKeyBackup string `envconfig:"API_KEY_BACKUP"`
	// APIKeys is a comma-separated list of further backups. Env: GEMINI_API_KEYS
	APIKeys string `envconfig:"API_KEYS"`
	// Model is the model identifier. Env: GEMINI_MODEL
	Model string `envconfig:"MODEL" default:"gemini-2.5-flash"`
	// BaseURL overrides the API endpoint. Env: GEMINI_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`
	// Grounding enables Google Search grounding. Env: GEMINI_GROUNDING
	Grounding bool `envconfig:"GROUNDING" default:"false"`
}

// BreakerEnv configures the provider circuit breaker.
type BreakerEnv struct {
	// FailureThreshold is the consecutive failure count that opens the circuit.
	FailureThreshold int `envconfig:"FAILURE_THRESHOLD" default:"5"`
	// ResetTimeout is how long the circuit stays open before a trial call.
	ResetTimeout time.Duration `envconfig:"RESET_TIMEOUT" default:"60s"`
}

// DBPoolEnv sizes the Postgres connection pool. SQLite always uses one connection.
type DBPoolEnv struct {
	// MaxOpen caps open connections. Env: DB_POOL_MAX_OPEN
	MaxOpen int `envconfig:"MAX_OPEN" default:"10"`
	// MaxIdle caps idle connections kept around. Env: DB_POOL_MAX_IDLE
	MaxIdle int `envconfig:"MAX_IDLE" default:"5"`
	// MaxLifetime recycles connections older than this; 0 keeps them forever. Env: DB_POOL_MAX_LIFETIME
	MaxLifetime time.Duration `envconfig:"MAX_LIFETIME" default:"30m"`
}

// KafkaEnv configures outcome events. Events are disabled when Brokers is empty.
type KafkaEnv struct {
	// Brokers is a comma-separated list of host:port. Env: KAFKA_BROKERS
	Brokers string `envconfig:"BROKERS"`
	// Topic receives one event per run. Env: KAFKA_TOPIC
	Topic string `envconfig:"TOPIC" default:"company-enrichment"`
}

// BackfillEnv configures the backfill command defaults.
type BackfillEnv struct {
	Workers      int     `envconfig:"WORKERS" default:"4"`
	RateLimitRPS float64 `envconfig:"RATE_LIMIT_RPS" default:"1"`
}

// LoadDotEnv loads environment variables from a .env file.
// If path is empty, it loads from ".env" in the current directory.
// If the file does not exist, it silently returns nil (not an error).
// Variables already set in the environment win over the file.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadFromEnv loads configuration from environment variables, without prefix.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from a .env file (optional) and environment variables,
// then validates it.
func LoadConfig(envPath string) (EnvConfig, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return EnvConfig{}, fmt.Errorf("load %s: %w", envPath, err)
	}
	cfg, err := LoadFromEnv()
	if err != nil {
		return EnvConfig{}, fmt.Errorf("load env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with. A missing API key is not an
// error here: starting enrichment reports it per request.
func (c EnvConfig) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be in 1..65535, got %d", c.Port))
	}
	if strings.TrimSpace(c.DBURL) == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}
	if c.DBPool.MaxOpen <= 0 {
		errs = append(errs, errors.New("DB_POOL_MAX_OPEN must be positive"))
	}
	if c.DBPool.MaxIdle < 0 {
		errs = append(errs, errors.New("DB_POOL_MAX_IDLE must not be negative"))
	}
	if c.DBPool.MaxLifetime < 0 {
		errs = append(errs, errors.New("DB_POOL_MAX_LIFETIME must not be negative"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.StaleAfter <= 0 {
		errs = append(errs, errors.New("STALE_AFTER must be positive"))
	}
	if c.RunTimeout <= 0 {
		errs = append(errs, errors.New("RUN_TIMEOUT must be positive"))
	}
	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, errors.New("BREAKER_FAILURE_THRESHOLD must be positive"))
	}
	if c.Breaker.ResetTimeout <= 0 {
		errs = append(errs, errors.New("BREAKER_RESET_TIMEOUT must be positive"))
	}
	if c.Backfill.Workers <= 0 {
		errs = append(errs, errors.New("BACKFILL_WORKERS must be positive"))
	}
	if c.Backfill.RateLimitRPS < 0 {
		errs = append(errs, errors.New("BACKFILL_RATE_LIMIT_RPS must not be negative"))
	}
	return errors.Join(errs...)
}

// Credentials returns provider API keys in try order: primary, backup, then the list.
// Blanks and duplicates are dropped.
func (c EnvConfig) Credentials() []string {
	raw := append([]string{c.Gemini.APIKey, c.Gemini.APIKeyBackup}, splitCSV(c.Gemini.APIKeys)...)
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// KafkaBrokers returns the configured broker addresses.
func (c EnvConfig) KafkaBrokers() []string {
	return splitCSV(c.Kafka.Brokers)
}

// Addr returns the HTTP listen address.
func (c EnvConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
