package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/livesub/pkg/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (optional, translation is disabled without a usable backend)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 512)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.2)
// - LLM_TIMEOUT: Request timeout in seconds (default: 15)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Translate Configuration:
// - SOURCE_LANGUAGE: Subtitle language translated from (default: sv)
// - DEFAULT_TARGET_LANGUAGE: Target language for new tabs (default: en)
//
// HTTP Configuration:
// - HTTP_ADDR: Listen address (default: :8787)
// - CORS_ALLOWED_ORIGINS: Comma separated origins (default: chrome-extension://*)
//
// Catalog Configuration:
// - CATALOG_BASE_URL: Video API base URL (default: https://video.svt.se)
// - CATALOG_TIMEOUT: Request timeout in seconds (default: 10)
//
// Session Configuration:
// - SWEEP_CRON: Schedule for dropping idle stored sessions (default: 0 * * * *)
// - SESSION_TTL_HOURS: Idle time before a stored session is dropped (default: 24)
// - PREFETCH_WORKERS: Prefetch worker count (default: 2)
// - PREFETCH_BUFFER: Pending prefetch task limit (default: 256)
//
// System Configuration:
// - DATA_DIR: Directory for the database and lock file (default: /app/data)
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - LOG_FILE: Also write logs to this file (optional)

type Config struct {
	// LLM Configuration
	LLM LLMConfig `json:"llm"`

	// Translate Configuration
	Translate TranslateConfig `json:"translate"`

	// HTTP Configuration
	HTTP HTTPConfig `json:"http"`

	// Catalog Configuration
	Catalog CatalogConfig `json:"catalog"`

	// Session Configuration
	Session SessionConfig `json:"session"`

	// System Configuration
	System SystemConfig `json:"system"`
}

// LLMConfig holds the configuration for LLM client
// Supports any OpenAI-compatible provider
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	AppName     string  `json:"app_name"`
}

// Enabled reports whether enough is configured to build a translation backend.
func (c LLMConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APIURL) != "" && strings.TrimSpace(c.Model) != ""
}

type TranslateConfig struct {
	SourceLanguage        language.Tag `json:"source_language"`
	DefaultTargetLanguage language.Tag `json:"default_target_language"`
}

type HTTPConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type CatalogConfig struct {
	BaseURL string `json:"base_url"`
	Timeout int    `json:"timeout"`
}

type SessionConfig struct {
	SweepCron       string `json:"sweep_cron"`
	TTLHours        int    `json:"ttl_hours"`
	PrefetchWorkers int    `json:"prefetch_workers"`
	PrefetchBuffer  int    `json:"prefetch_buffer"`
}

// SystemConfig holds the system configuration
type SystemConfig struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// DBPath is the SQLite database file inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "livesub.db")
}

// LockPath guards the data directory against a second server process.
func (c *Config) LockPath() string {
	return filepath.Join(c.System.DataDir, "livesub.lock")
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 512),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
			Timeout:     getEnvInt("LLM_TIMEOUT", 15),
			AppName:     getEnvString("LLM_APP_NAME", "livesub"),
		},
		Translate: TranslateConfig{
			SourceLanguage:        getEnvLanguage("SOURCE_LANGUAGE", language.Swedish),
			DefaultTargetLanguage: getEnvLanguage("DEFAULT_TARGET_LANGUAGE", language.English),
		},
		HTTP: HTTPConfig{
			Addr:           getEnvString("HTTP_ADDR", ":8787"),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"chrome-extension://*"}),
		},
		Catalog: CatalogConfig{
			BaseURL: getEnvString("CATALOG_BASE_URL", "https://video.svt.se"),
			Timeout: getEnvInt("CATALOG_TIMEOUT", 10),
		},
		Session: SessionConfig{
			SweepCron:       getEnvString("SWEEP_CRON", "0 * * * *"),
			TTLHours:        getEnvInt("SESSION_TTL_HOURS", 24),
			PrefetchWorkers: getEnvInt("PREFETCH_WORKERS", 2),
			PrefetchBuffer:  getEnvInt("PREFETCH_BUFFER", 256),
		},
		System: SystemConfig{
			DataDir:  getEnvString("DATA_DIR", "/app/data"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
			LogFile:  getEnvString("LOG_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	if !config.LLM.Enabled() {
		log.Warn("LLM_API_KEY is not set, subtitles will be shown untranslated until settings are updated")
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.System.DataDir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if _, err := cron.ParseStandard(c.Session.SweepCron); err != nil {
		return fmt.Errorf("invalid SWEEP_CRON: %w", err)
	}
	if c.Session.TTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if c.Session.PrefetchWorkers <= 0 {
		return fmt.Errorf("PREFETCH_WORKERS must be positive")
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	ret := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}

// getEnvLanguage parses a BCP 47 tag, falling back to the default when unset or invalid
func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	tag, err := language.Parse(value)
	if err != nil {
		log.Warn("Invalid %s %q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return tag
}
