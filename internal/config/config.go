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

const (
	ProviderAuto   = "auto"
	ProviderGemini = "gemini"
	ProviderScript = "script"
)

// Config contains all runtime settings for the cold call trainer.
type Config struct {
	BindAddr                 string        `yaml:"bind_addr"`
	ShutdownTimeout          time.Duration `yaml:"shutdown_timeout"`
	SessionInactivityTimeout time.Duration `yaml:"session_inactivity_timeout"`
	MetricsNamespace         string        `yaml:"metrics_namespace"`
	AllowAnyOrigin           bool          `yaml:"allow_any_origin"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// LiveProvider is auto, gemini or script. Auto picks gemini when an API key is set.
	LiveProvider string `yaml:"live_provider"`
	GeminiAPIKey string `yaml:"-"`
	LiveModel    string `yaml:"live_model"`
	ScriptPath   string `yaml:"script_path"`

	EvalModel       string        `yaml:"eval_model"`
	EvalTemperature float64       `yaml:"eval_temperature"`
	EvalTimeout     time.Duration `yaml:"eval_timeout"`

	ConnectionGrace time.Duration `yaml:"connection_grace"`
	CallStartRate   float64       `yaml:"call_start_rate"`
	CallStartBurst  int           `yaml:"call_start_burst"`
}

func Defaults() Config {
	return Config{
		BindAddr:                 ":8080",
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
		MetricsNamespace:         "coldcall",
		LogLevel:                 "info",
		LogFormat:                "json",
		LiveProvider:             ProviderAuto,
		LiveModel:                "gemini-2.5-flash-native-audio-preview-12-2025",
		EvalModel:                "gemini-3.1-pro-preview",
		EvalTemperature:          0.3,
		EvalTimeout:              60 * time.Second,
		ConnectionGrace:          5 * time.Second,
		CallStartRate:            0.5,
		CallStartBurst:           3,
	}
}

// Load reads .env (APP_ENV_FILE), then the optional YAML file named by
// APP_CONFIG_FILE, then environment variables. Later sources win.
func Load() (Config, error) {
	envFile := envOrDefault("APP_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Defaults()
	if path := stringsTrimSpace("APP_CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.BindAddr = envOrDefault("APP_BIND_ADDR", cfg.BindAddr)
	cfg.MetricsNamespace = envOrDefault("APP_METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.LogLevel = strings.ToLower(envOrDefault("APP_LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(envOrDefault("APP_LOG_FORMAT", cfg.LogFormat))
	cfg.LiveProvider = strings.ToLower(envOrDefault("LIVE_PROVIDER", cfg.LiveProvider))
	cfg.LiveModel = envOrDefault("GEMINI_LIVE_MODEL", cfg.LiveModel)
	cfg.EvalModel = envOrDefault("GEMINI_EVAL_MODEL", cfg.EvalModel)
	cfg.ScriptPath = envOrDefault("LIVE_SCRIPT_PATH", cfg.ScriptPath)
	cfg.GeminiAPIKey = stringsTrimSpace("GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = stringsTrimSpace("GOOGLE_API_KEY")
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return err
	}
	if cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout); err != nil {
		return err
	}
	if cfg.EvalTimeout, err = durationFromEnv("GEMINI_EVAL_TIMEOUT", cfg.EvalTimeout); err != nil {
		return err
	}
	if cfg.ConnectionGrace, err = durationFromEnv("CALL_CONNECTION_GRACE", cfg.ConnectionGrace); err != nil {
		return err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return err
	}
	if cfg.EvalTemperature, err = floatFromEnv("GEMINI_EVAL_TEMPERATURE", cfg.EvalTemperature); err != nil {
		return err
	}
	if cfg.CallStartRate, err = floatFromEnv("CALL_START_RATE", cfg.CallStartRate); err != nil {
		return err
	}
	if cfg.CallStartBurst, err = intFromEnv("CALL_START_BURST", cfg.CallStartBurst); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	switch c.LiveProvider {
	case ProviderAuto, ProviderScript:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("LIVE_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("LIVE_PROVIDER must be one of auto, gemini, script (got %q)", c.LiveProvider)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("APP_LOG_FORMAT must be json or console (got %q)", c.LogFormat)
	}
	if c.EvalTemperature < 0 || c.EvalTemperature > 2 {
		return fmt.Errorf("GEMINI_EVAL_TEMPERATURE must be within [0, 2]")
	}
	if c.ConnectionGrace < 0 {
		return fmt.Errorf("CALL_CONNECTION_GRACE must not be negative")
	}
	if c.CallStartRate <= 0 {
		return fmt.Errorf("CALL_START_RATE must be positive")
	}
	if c.CallStartBurst <= 0 {
		return fmt.Errorf("CALL_START_BURST must be positive")
	}
	return nil
}

// UseGemini reports whether the live provider resolves to the Gemini API.
func (c Config) UseGemini() bool {
	switch c.LiveProvider {
	case ProviderGemini:
		return true
	case ProviderAuto:
		return c.GeminiAPIKey != ""
	default:
		return false
	}
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
