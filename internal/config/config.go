package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

// Storage drivers. The memory driver keeps everything in process and is
// meant for demos and tests.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	Addr           string          `yaml:"addr"`
	JWTSecret      string          `yaml:"jwt_secret"`
	APITimeout     time.Duration   `yaml:"timeout"`
	DatabaseDriver string          `yaml:"database_driver"`
	DatabasePath   string          `yaml:"database_path"`
	MigrateOnStart bool            `yaml:"migrate_on_start"`
	SeedOnStart    bool            `yaml:"seed_on_start"`
	TokenDuration  time.Duration   `yaml:"token_duration"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	EngineConfig   EngineConfig    `yaml:"engine"`
	Ollama         OllamaConfig    `yaml:"ollama"`
	Gemini         GeminiConfig    `yaml:"gemini"`
	Matching       MatchingConfig  `yaml:"matching"`
	Jobs           JobsConfig      `yaml:"jobs"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Log            LogConfig       `yaml:"log"`
}

// EngineConfig selects and tunes the service classifier.
type EngineConfig struct {
	// Provider is one of "ollama", "gemini" or "none".
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	// Template overrides the embedded prompt template when set.
	Template string `yaml:"template"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	DefaultModelNames       []string      `yaml:"models"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

type MatchingConfig struct {
	MaxResults int `yaml:"max_results"`
}

type JobsConfig struct {
	Workers     int `yaml:"workers"`
	MaxAttempts int `yaml:"max_attempts"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultOllamaConfig returns the client settings used when none are configured.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL:                 getEnv("FIXIT_OLLAMA_URL", "http://localhost:11434"),
		DefaultModelNames:       []string{"llama3"},
		Timeout:                 30 * time.Second,
		Retries:                 2,
		Backoff:                 500 * time.Millisecond,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:           getEnv("FIXIT_ADDR", ":8080"),
		JWTSecret:      getEnv("FIXIT_JWT_SECRET", insecureJWTSecret),
		APITimeout:     15 * time.Second,
		DatabaseDriver: getEnv("FIXIT_DATABASE_DRIVER", DriverSQLite),
		DatabasePath:   getEnv("FIXIT_DATABASE_PATH", "fixit.db"),
		MigrateOnStart: getEnvBool("FIXIT_MIGRATE_ON_START", true),
		SeedOnStart:    getEnvBool("FIXIT_SEED_ON_START", false),
		TokenDuration:  1 * time.Hour,
		AllowedOrigins: []string{"*"},
		EngineConfig: EngineConfig{
			Provider: getEnv("FIXIT_CLASSIFIER", "ollama"),
			Model:    getEnv("FIXIT_CLASSIFIER_MODEL", "llama3"),
			Timeout:  20 * time.Second,
		},
		Ollama:    DefaultOllamaConfig(),
		Gemini:    GeminiConfig{APIKey: getEnv("GEMINI_API_KEY", "")},
		Matching:  MatchingConfig{MaxResults: 3},
		Jobs:      JobsConfig{Workers: 2, MaxAttempts: 3},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 10},
		Log:       LogConfig{Level: getEnv("FIXIT_LOG_LEVEL", "info"), Format: "json"},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks required settings and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	switch c.DatabaseDriver {
	case "":
		c.DatabaseDriver = DriverSQLite
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown database_driver %q", c.DatabaseDriver)
	}
	if c.DatabaseDriver == DriverSQLite && c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTSecret == insecureJWTSecret && !strings.EqualFold(os.Getenv("FIXIT_ENV"), "development") {
		return errors.New("jwt_secret uses the insecure default; set FIXIT_JWT_SECRET or FIXIT_ENV=development")
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}

	switch c.EngineConfig.Provider {
	case "":
		c.EngineConfig.Provider = "none"
	case "none":
	case "ollama", "gemini":
		if c.EngineConfig.Model == "" {
			return fmt.Errorf("engine.model is required for provider %q", c.EngineConfig.Provider)
		}
	default:
		return fmt.Errorf("unknown engine.provider %q", c.EngineConfig.Provider)
	}
	if c.EngineConfig.Provider == "gemini" && c.Gemini.APIKey == "" {
		return errors.New("gemini.api_key is required for provider gemini")
	}
	if c.EngineConfig.Timeout <= 0 {
		c.EngineConfig.Timeout = 20 * time.Second
	}

	def := DefaultOllamaConfig()
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = def.BaseURL
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = def.Timeout
	}
	if c.Ollama.Retries <= 0 {
		c.Ollama.Retries = def.Retries
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = def.Backoff
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = def.CircuitFailureThreshold
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = def.CircuitReset
	}

	if c.Matching.MaxResults <= 0 {
		c.Matching.MaxResults = 3
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 2
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 3
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 5
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
