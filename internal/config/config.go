package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Engine names accepted in configuration
const (
	EnginePgsql  = "pgsql"
	EngineSqlite = "sqlite"
)

// Config represents the application configuration
type Config struct {
	DatabaseURL       string        `yaml:"database_url"`
	Engine            string        `yaml:"engine"`
	BatchSize         int           `yaml:"batch_size"`
	CredentialSuffix  string        `yaml:"credential_suffix"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	RetryMax          int           `yaml:"retry_max"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/usageadm/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := Defaults()

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional
	_ = loadYAMLConfig(cfg)

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Defaults returns a config with every optional field populated.
func Defaults() *Config {
	return &Config{
		Engine:            EnginePgsql,
		BatchSize:         1000,
		CredentialSuffix:  "-rm",
		LogLevel:          "info",
		LogFormat:         "text",
		RetryMax:          5,
		RetryInitialDelay: 500 * time.Millisecond,
	}
}

// Validate checks option values. A missing database URL is not an error here;
// commands that need a connection check it via RequireDatabase.
func (c *Config) Validate() error {
	switch c.Engine {
	case EnginePgsql, EngineSqlite:
	default:
		return fmt.Errorf("unknown database engine %q (expected %s or %s)", c.Engine, EnginePgsql, EngineSqlite)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.CredentialSuffix == "" {
		return fmt.Errorf("credential suffix must not be empty")
	}
	if c.RetryMax <= 0 {
		return fmt.Errorf("retry max must be positive, got %d", c.RetryMax)
	}
	return nil
}

// RequireDatabase returns an error when no connection target is configured.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("no database configured (set USAGEADM_DATABASE_URL or DATABASE_URL, or use --db-url)")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if url := getEnvOrFile("USAGEADM_DATABASE_URL", "USAGEADM_DATABASE_URL_FILE"); url != "" {
		cfg.DatabaseURL = strings.TrimSpace(url)
	} else if url := os.Getenv("DATABASE_URL"); url != "" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = url
	}
	if engine := os.Getenv("USAGEADM_ENGINE"); engine != "" {
		cfg.Engine = engine
	}
	if suffix := os.Getenv("USAGEADM_CREDENTIAL_SUFFIX"); suffix != "" {
		cfg.CredentialSuffix = suffix
	}
	if logLevel := os.Getenv("USAGEADM_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat := os.Getenv("USAGEADM_LOG_FORMAT"); logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if v := os.Getenv("USAGEADM_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid USAGEADM_BATCH_SIZE %q: %w", v, err)
		}
		cfg.BatchSize = n
	}
	if v := os.Getenv("USAGEADM_RETRY_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid USAGEADM_RETRY_MAX %q: %w", v, err)
		}
		cfg.RetryMax = n
	}
	if v := os.Getenv("USAGEADM_RETRY_INITIAL_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid USAGEADM_RETRY_INITIAL_DELAY %q: %w", v, err)
		}
		cfg.RetryInitialDelay = d
	}
	return nil
}

// loadYAMLConfig loads configuration from ~/.config/usageadm/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "usageadm", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return string(data)
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
