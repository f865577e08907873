// Package mock is the always-available canned assistant. It is registered
// last so any configured vendor wins, and it keeps the chat widget working
// on deployments with no credentials at all.
package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/sse"
)

const (
	serviceName  = "MockAssistant"
	defaultModel = "portfolio-assistant"
)

type Service struct{}

func New() *Service {
	return &Service{}
}

func (s *Service) ServiceName() string {
	return serviceName
}

func (s *Service) Available() bool {
	return true
}

func (s *Service) ChatCompletion(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	prompt := lastUserMessage(req.Messages)
	content := reply(prompt)

	var promptText strings.Builder
	for _, m := range req.Messages {
		promptText.WriteString(m.Content.String())
	}
	promptTokens := estimateTokens(promptText.String())
	completionTokens := estimateTokens(content)

	return &domain.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []domain.Choice{
			{
				Index: 0,
				Message: &domain.Message{
					Role:    domain.RoleAssistant,
					Content: domain.Text(content),
				},
				FinishReason: "stop",
			},
		},
		Usage: domain.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

func (s *Service) ChatCompletionStream(ctx context.Context, req domain.ChatRequest) (<-chan string, <-chan error) {
	frames := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errs)

		resp, err := s.ChatCompletion(ctx, req)
		if err != nil {
			errs <- err
			return
		}

		content := []rune(resp.Choices[0].Message.Content.String())
		stop := "stop"

		for i, r := range content {
			choice := domain.StreamChoice{
				Index: 0,
				Delta: domain.Delta{Content: string(r)},
			}
			if i == len(content)-1 {
				choice.FinishReason = &stop
			}

			frame, err := sse.Frame(domain.StreamChunk{
				ID:      resp.ID,
				Object:  "chat.completion.chunk",
				Created: resp.Created,
				Model:   resp.Model,
				Choices: []domain.StreamChoice{choice},
			})
			if err != nil {
				continue
			}

			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}

		select {
		case frames <- sse.DoneFrame:
		case <-ctx.Done():
		}
	}()

	return frames, errs
}

func (s *Service) Models(ctx context.Context) ([]domain.Model, error) {
	return []domain.Model{
		{ID: defaultModel, Object: "model", Created: time.Now().Unix(), OwnedBy: "lgforest", Service: serviceName},
	}, nil
}

func (s *Service) HealthCheck(ctx context.Context) domain.HealthStatus {
	return domain.HealthStatus{
		Service:          serviceName,
		Available:        true,
		APIKeyConfigured: false,
		Status:           domain.StatusMock,
	}
}

func lastUserMessage(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content.String()
		}
	}
	return ""
}

func reply(prompt string) string {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		return "Hello! I'm the portfolio site assistant. I can tell you about the projects, " +
			"the gallery, or how this chat works. What would you like to know?"
	case strings.Contains(lower, "project") || strings.Contains(lower, "portfolio"):
		return "This site showcases a personal portfolio: project write-ups, an image gallery, " +
			"and this chat widget. The chat is currently running in offline mode, so answers " +
			"are canned rather than generated."
	default:
		return fmt.Sprintf("I received your message: %q. No AI provider is configured right now, "+
			"so I can only give canned answers. Configure a vendor API key to enable real replies.", prompt)
	}
}

// Rough token estimate used for mock usage accounting, about four
// characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
