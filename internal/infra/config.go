package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// DatabaseURL backs the results warehouse and the hydration tool. The
	// API runs without it; the warehouse export is then disabled.
	DatabaseURL      string
	WarehouseEnabled bool
	WarehouseTable   string

	// Evaluation runner invocation.
	RunnerBin         string
	RunnerConfigPath  string
	RunnerOutputDir   string
	TargetAuthToken   string
	OpenAIEndpoint    string
	OpenAIKey         string
	OpenAIModel       string
	ScorerTemperature float64

	MaxConcurrentEvaluations int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                   getEnv("APP_ENV", "development"),
		Port:                     getEnv("PORT", "8080"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		WarehouseEnabled:         getEnvBool("WAREHOUSE_ENABLED", false),
		WarehouseTable:           getEnv("WAREHOUSE_TABLE", "eval_results"),
		RunnerBin:                getEnv("RUNNER_BIN", "eval-runner"),
		RunnerConfigPath:         getEnv("RUNNER_CONFIG_PATH", "eval/config.yaml"),
		RunnerOutputDir:          getEnv("RUNNER_OUTPUT_DIR", "eval_reports"),
		TargetAuthToken:          os.Getenv("TARGET_AUTH_TOKEN"),
		OpenAIEndpoint:           os.Getenv("OPENAI_CHAT_ENDPOINT"),
		OpenAIKey:                os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:              getEnv("OPENAI_CHAT_MODEL", "gpt-5"),
		ScorerTemperature:        getEnvFloat("SCORER_TEMPERATURE", 1.0),
		MaxConcurrentEvaluations: getEnvInt("MAX_CONCURRENT_EVALUATIONS", 4),
		HTTPReadTimeout:          time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:         time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:          time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.OpenAIEndpoint == "" || cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_CHAT_ENDPOINT and OPENAI_API_KEY are required")
	}

	if cfg.WarehouseEnabled && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when WAREHOUSE_ENABLED is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
