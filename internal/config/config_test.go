package config

import (
	"os"
	"testing"
	"time"
)

var envVars = []string{
	"ADDR", "LOG_LEVEL",
	"DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL",
	"KIMI_API_KEY", "KIMI_BASE_URL",
	"OPENAI_API_KEY", "OPENAI_BASE_URL",
	"AWS_REGION", "BEDROCK_ENABLED", "MOCK_ENABLED",
	"RESUME_PROFILE_PATH", "ALLOWED_ORIGINS",
	"OTLP_ENDPOINT", "SHUTDOWN_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Addr", cfg.Addr, ":8080"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"DeepSeekAPIKey", cfg.DeepSeekAPIKey, ""},
		{"DeepSeekBaseURL", cfg.DeepSeekBaseURL, "https://api.deepseek.com/v1"},
		{"KimiAPIKey", cfg.KimiAPIKey, ""},
		{"KimiBaseURL", cfg.KimiBaseURL, "https://api.moonshot.cn/v1"},
		{"OpenAIAPIKey", cfg.OpenAIAPIKey, ""},
		{"OpenAIBaseURL", cfg.OpenAIBaseURL, "https://api.openai.com/v1"},
		{"AWSRegion", cfg.AWSRegion, ""},
		{"ResumeProfilePath", cfg.ResumeProfilePath, "data/resume-profile.md"},
		{"OTLPEndpoint", cfg.OTLPEndpoint, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}

	if cfg.BedrockEnabled {
		t.Error("BedrockEnabled should default to false")
	}
	if !cfg.MockEnabled {
		t.Error("MockEnabled should default to true")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want the two site origins", cfg.AllowedOrigins)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("ADDR", ":9090")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("BEDROCK_ENABLED", "true")
	t.Setenv("MOCK_ENABLED", "false")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://a.example.com")
	t.Setenv("SHUTDOWN_TIMEOUT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DeepSeekAPIKey != "sk-test" {
		t.Errorf("DeepSeekAPIKey = %q", cfg.DeepSeekAPIKey)
	}
	if !cfg.BedrockEnabled {
		t.Error("BedrockEnabled should be true")
	}
	if cfg.MockEnabled {
		t.Error("MockEnabled should be false")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://a.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
}
