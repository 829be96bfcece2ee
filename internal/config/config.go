package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-level configuration: orchestrator concurrency,
// timeouts, trend DB connection, LLM credentials, and the
// local spool path used when trend ingest persistently fails.
type Config struct {
	LogLevel  string
	LogFormat string

	WorkerPoolSize int

	ConnectorOpenTimeout time.Duration
	QueryTimeout         time.Duration
	SSHCommandTimeout    time.Duration
	PerCheckTimeout      time.Duration
	PerTargetTimeout     time.Duration
	LLMTimeout           time.Duration
	CancelGracePeriod    time.Duration

	TrendDBDSN string
	SpoolDir   string

	LLMEndpoint    string
	LLMModel       string
	LLMAPIKeyRef   string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMEnabled     bool

	PromptTokenBudget int
	DefaultRowLimit   int
}

// Load reads configuration from the environment plus an optional .env
// file. Values from .env only fill in variables that are not already set
// in the process environment; an existing variable always wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		WorkerPoolSize: getIntEnv("WORKER_POOL_SIZE", 4),

		ConnectorOpenTimeout: getDurationEnv("CONNECTOR_OPEN_TIMEOUT", 10*time.Second),
		QueryTimeout:         getDurationEnv("QUERY_TIMEOUT", 30*time.Second),
		SSHCommandTimeout:    getDurationEnv("SSH_COMMAND_TIMEOUT", 20*time.Second),
		PerCheckTimeout:      getDurationEnv("PER_CHECK_TIMEOUT", 60*time.Second),
		PerTargetTimeout:     getDurationEnv("PER_TARGET_TIMEOUT", 10*time.Minute),
		LLMTimeout:           getDurationEnv("LLM_TIMEOUT", 120*time.Second),
		CancelGracePeriod:    getDurationEnv("CANCEL_GRACE_PERIOD", 5*time.Second),

		TrendDBDSN: getEnv("TREND_DB_DSN", ""),
		SpoolDir:   getEnv("SPOOL_DIR", "./spool"),

		LLMEndpoint:    getEnv("LLM_ENDPOINT", ""),
		LLMModel:       getEnv("LLM_MODEL", "claude-sonnet-4-5"),
		LLMAPIKeyRef:   getEnv("LLM_API_KEY_REF", "LLM_API_KEY"),
		LLMMaxTokens:   getIntEnv("LLM_MAX_OUTPUT_TOKENS", 4096),
		LLMTemperature: getFloatEnv("LLM_TEMPERATURE", 0.2),
		LLMEnabled:     getBoolEnv("LLM_ENABLED", true),

		PromptTokenBudget: getIntEnv("PROMPT_TOKEN_BUDGET", 12000),
		DefaultRowLimit:   getIntEnv("DEFAULT_ROW_LIMIT", 10),
	}

	if cfg.WorkerPoolSize <= 0 {
		return nil, fmt.Errorf("config: WORKER_POOL_SIZE must be positive")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getIntEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloatEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
