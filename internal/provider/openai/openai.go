// Package openai binds the OpenAI-compatible adapter core to the OpenAI
// chat API.
package openai

import (
	"strings"

	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/provider/openaicompat"
)

const (
	serviceName    = "OpenAI"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
)

var fallbackModels = []domain.Model{
	{ID: "gpt-3.5-turbo", Object: "model", Created: 1686935002, OwnedBy: "openai"},
	{ID: "gpt-4", Object: "model", Created: 1687882411, OwnedBy: "openai"},
	{ID: "gpt-4-turbo", Object: "model", Created: 1712361441, OwnedBy: "openai"},
	{ID: "gpt-4o", Object: "model", Created: 1715367049, OwnedBy: "openai"},
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
			return strings.Contains(id, "gpt") || strings.HasPrefix(id, "o1")
		},
	})
}
