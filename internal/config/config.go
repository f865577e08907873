package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	KimiAPIKey      string
	KimiBaseURL     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string

	AWSRegion      string
	BedrockEnabled bool

	// MockEnabled registers the canned assistant as a last-resort service so
	// the widget keeps working with no vendor credentials configured.
	MockEnabled bool

	ResumeProfilePath string
	AllowedOrigins    []string

	OTLPEndpoint string

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:              getEnv("ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DeepSeekAPIKey:    getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL:   getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		KimiAPIKey:        getEnv("KIMI_API_KEY", ""),
		KimiBaseURL:       getEnv("KIMI_BASE_URL", "https://api.moonshot.cn/v1"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		BedrockEnabled:    getEnv("BEDROCK_ENABLED", "false") == "true",
		MockEnabled:       getEnv("MOCK_ENABLED", "true") == "true",
		ResumeProfilePath: getEnv("RESUME_PROFILE_PATH", "data/resume-profile.md"),
		AllowedOrigins:    splitEnv("ALLOWED_ORIGINS", "https://openapi.lgforest.fun,https://introduce.lgforest.fun"),
		OTLPEndpoint:      getEnv("OTLP_ENDPOINT", ""),
		ShutdownTimeout:   getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
