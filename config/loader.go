// Package config provides unified configuration loading: defaults, then a
// YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AUTOCOMPANY").
//	    Load()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of the framework.
type Config struct {
	// LLM provider settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Company orchestration settings.
	Company CompanyConfig `yaml:"company" env:"COMPANY"`

	// Cache is the Redis response cache.
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Database stores solving records.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log settings.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// LLMConfig configures the provider stack.
type LLMConfig struct {
	// API key for the provider.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Base URL override; empty uses the provider default.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Default model when a request names none.
	Model string `yaml:"model" env:"MODEL"`
	// Request timeout.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Max retries for retryable provider errors.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// Requests per second allowed through the rate limiter (0 disables).
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// CompanyConfig configures orchestration behavior.
type CompanyConfig struct {
	// StepBudget bounds plan-walk transitions per run.
	StepBudget int `yaml:"step_budget" env:"STEP_BUDGET"`
	// ManagerModel overrides the model for the manager roles.
	ManagerModel string `yaml:"manager_model" env:"MANAGER_MODEL"`
	// FormatterModel overrides the model for input formatting.
	FormatterModel string `yaml:"formatter_model" env:"FORMATTER_MODEL"`
}

// CacheConfig configures the Redis response cache.
type CacheConfig struct {
	// Enabled toggles response caching.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Addr is the Redis address.
	Addr string `yaml:"addr" env:"ADDR"`
	// Password for Redis auth.
	Password string `yaml:"password" env:"PASSWORD"`
	// DB is the Redis database number.
	DB int `yaml:"db" env:"DB"`
	// TTL for cached responses.
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// DatabaseConfig configures the solving-record store.
type DatabaseConfig struct {
	// Enabled toggles run persistence.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Path is the sqlite database file (":memory:" for in-memory).
	Path string `yaml:"path" env:"PATH"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths for the logger.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// EnableCaller annotates entries with file:line.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:      "gpt-4o",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		Company: CompanyConfig{
			StepBudget: 64,
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
			TTL:  5 * time.Minute,
		},
		Database: DatabaseConfig{
			Path: "autocompany.db",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
	}
}

// Loader loads configuration with builder-style setup.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the AUTOCOMPANY env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "AUTOCOMPANY"}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validation step run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence: defaults, then the YAML
// file, then environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// setFieldsFromEnv walks the struct recursively, overriding fields from
// PREFIX_SECTION_FIELD environment variables declared via env tags.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// MustLoad loads configuration from path, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []string
	if c.Company.StepBudget <= 0 {
		errs = append(errs, "company.step_budget must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm.max_retries cannot be negative")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, "log.format must be json or console")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
