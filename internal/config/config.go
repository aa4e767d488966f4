package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime configuration for one service instance. Each
// instance serves exactly one backend family, selected by OCR_ENGINE.
type Config struct {
	Host               string
	Port               string
	Engine             string
	RequestTimeout     time.Duration
	InferenceTimeout   time.Duration
	MaxRequestBodySize int64

	// EagerLoad triggers model loading at startup instead of on the first
	// /ocr request. Readiness reporting works the same either way.
	EagerLoad bool

	// Languages are the default language hints passed to the engine when a
	// request does not specify its own.
	Languages []string

	// ModelDir is the root directory holding per-family model weights.
	ModelDir string
	// OnnxRuntimeLibPath overrides the platform-default onnxruntime
	// shared library location for the ONNX-backed families.
	OnnxRuntimeLibPath string

	// Azure blob credentials, only needed for blob-hosted URL-mode requests.
	AzureStorageAccount string
	AzureStorageKey     string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// SupportedEngines lists the backend families this build can serve.
var SupportedEngines = []string{"surya", "paddleocr", "pix2text", "tesseract"}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		Engine:             getEnvOrDefault("OCR_ENGINE", "tesseract"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		InferenceTimeout:   parseDurationOrDefault("INFERENCE_TIMEOUT", 45*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 20*1024*1024), // 20MB
		EagerLoad:          parseBoolOrDefault("EAGER_LOAD", false),
		Languages:          parseListOrDefault("OCR_LANGUAGES", []string{"en"}),
		ModelDir:           getEnvOrDefault("MODEL_DIR", "./models"),
		OnnxRuntimeLibPath: os.Getenv("ONNX_RUNTIME_LIB"),

		AzureStorageAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:     os.Getenv("AZURE_STORAGE_KEY"),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if !isSupportedEngine(cfg.Engine) {
		return nil, fmt.Errorf("unsupported OCR_ENGINE: %q (supported: %s)",
			cfg.Engine, strings.Join(SupportedEngines, ", "))
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 || cfg.InferenceTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, inference=%s)",
			cfg.RequestTimeout, cfg.InferenceTimeout)
	}
	return cfg, nil
}

func isSupportedEngine(name string) bool {
	for _, e := range SupportedEngines {
		if e == name {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
