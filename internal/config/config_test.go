package config

import (
	"reflect"
	"testing"
	"time"
)

// clearEnv unsets every variable LoadFromEnv reads so tests start from
// the documented defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "OCR_ENGINE", "REQUEST_TIMEOUT", "INFERENCE_TIMEOUT",
		"MAX_REQUEST_BODY_SIZE", "EAGER_LOAD", "OCR_LANGUAGES", "MODEL_DIR",
		"ONNX_RUNTIME_LIB", "AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Engine != "tesseract" {
		t.Errorf("Engine = %q, want tesseract", cfg.Engine)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("ServerAddress = %q, want 0.0.0.0:8080", cfg.ServerAddress())
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %v, want 60s", cfg.RequestTimeout)
	}
	if cfg.InferenceTimeout != 45*time.Second {
		t.Errorf("InferenceTimeout = %v, want 45s", cfg.InferenceTimeout)
	}
	if cfg.MaxRequestBodySize != 20*1024*1024 {
		t.Errorf("MaxRequestBodySize = %d, want 20MB", cfg.MaxRequestBodySize)
	}
	if cfg.EagerLoad {
		t.Error("EagerLoad = true, want false by default")
	}
	if !reflect.DeepEqual(cfg.Languages, []string{"en"}) {
		t.Errorf("Languages = %v, want [en]", cfg.Languages)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_ENGINE", "surya")
	t.Setenv("PORT", "9000")
	t.Setenv("REQUEST_TIMEOUT", "90s")
	t.Setenv("EAGER_LOAD", "true")
	t.Setenv("OCR_LANGUAGES", "en, de ,fr")
	t.Setenv("MODEL_DIR", "/opt/models")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Engine != "surya" {
		t.Errorf("Engine = %q, want surya", cfg.Engine)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.RequestTimeout != 90*time.Second {
		t.Errorf("RequestTimeout = %v, want 90s", cfg.RequestTimeout)
	}
	if !cfg.EagerLoad {
		t.Error("EagerLoad = false, want true")
	}
	if !reflect.DeepEqual(cfg.Languages, []string{"en", "de", "fr"}) {
		t.Errorf("Languages = %v, want [en de fr]", cfg.Languages)
	}
	if cfg.ModelDir != "/opt/models" {
		t.Errorf("ModelDir = %q, want /opt/models", cfg.ModelDir)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unsupported engine", "OCR_ENGINE", "doctr"},
		{"non-numeric port", "PORT", "not-a-port"},
		{"port out of range", "PORT", "70000"},
		{"negative body size", "MAX_REQUEST_BODY_SIZE", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("LoadFromEnv accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_MalformedOptionalFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("EAGER_LOAD", "kinda")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %v, want default 60s", cfg.RequestTimeout)
	}
	if cfg.EagerLoad {
		t.Error("EagerLoad = true, want default false")
	}
}
