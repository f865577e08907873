// Package kimi binds the OpenAI-compatible adapter core to the Moonshot
// (Kimi) chat API.
package kimi

import (
	"strings"

	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/provider/openaicompat"
)

const (
	serviceName    = "KimiAI"
	defaultBaseURL = "https://api.moonshot.cn/v1"
	defaultModel   = "moonshot-v1-8k"
)

var fallbackModels = []domain.Model{
	{ID: "moonshot-v1-8k", Object: "model", OwnedBy: "moonshot"},
	{ID: "moonshot-v1-32k", Object: "model", OwnedBy: "moonshot"},
	{ID: "moonshot-v1-128k", Object: "model", OwnedBy: "moonshot"},
	{ID: "moonshot-v1-8k-vision-preview", Object: "model", OwnedBy: "moonshot"},
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
			return strings.Contains(id, "moonshot") || strings.Contains(id, "kimi")
		},
	})
}
