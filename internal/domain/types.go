package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Defaults applied by adapters when the request omits generation parameters.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent is either plain text or, for vision-capable models, an
// ordered list of typed parts. It marshals as a bare JSON string unless
// parts are present.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

func Text(s string) MessageContent {
	return MessageContent{Text: s}
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.Parts = nil
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("message content must be a string or a list of parts: %w", err)
	}
	c.Text = ""
	c.Parts = parts
	return nil
}

// String flattens the content to plain text. Image parts are skipped.
func (c MessageContent) String() string {
	if c.Parts == nil {
		return c.Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is the normalized shape of one streamed delta. Adapters
// reshape every vendor's native chunk into this before writing it as an
// SSE frame.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
	Service string `json:"service,omitempty"`
}

type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ServiceModels groups one adapter's model listing.
type ServiceModels struct {
	Service string  `json:"service"`
	Models  []Model `json:"models"`
}

// Health status values reported by adapters.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusMock      = "mock"
	StatusError     = "error"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the outcome of one adapter's health probe. HealthCheck
// never fails; probe errors land in Status/Error instead.
type HealthStatus struct {
	Type             string `json:"type,omitempty"`
	Service          string `json:"service"`
	Available        bool   `json:"available"`
	APIKeyConfigured bool   `json:"api_key_configured"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
}
