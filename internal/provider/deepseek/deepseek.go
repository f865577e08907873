// Package deepseek binds the OpenAI-compatible adapter core to the DeepSeek
// chat API.
package deepseek

import (
	"strings"

	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/provider/openaicompat"
)

const (
	serviceName    = "DeepSeek"
	defaultBaseURL = "https://api.deepseek.com/v1"
	defaultModel   = "deepseek-chat"
)

// Known model identifiers, served when the upstream listing call fails.
var fallbackModels = []domain.Model{
	{ID: "deepseek-chat", Object: "model", OwnedBy: "deepseek"},
	{ID: "deepseek-coder", Object: "model", OwnedBy: "deepseek"},
	{ID: "deepseek-reasoner", Object: "model", OwnedBy: "deepseek"},
}

func New(apiKey, baseURL string) *openaicompat.Service {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return openaicompat.New(openaicompat.Config{
		ServiceName:    serviceName,
		APIKey:         apiKey,
		BaseURL:        baseURL,
		DefaultModel:   defaultModel,
		FallbackModels: fallbackModels,
		KeepModel: func(id string) bool {
			return strings.Contains(id, "deepseek")
		},
	})
}
