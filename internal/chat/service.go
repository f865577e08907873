// Package chat is the orchestrator behind the HTTP surface: it resolves the
// adapter for a request, optionally augments the prompt with the resume
// profile, and delegates.
package chat

import (
	"context"
	"fmt"

	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/registry"
	"github.com/lgforest/chat-relay/internal/telemetry"
)

type Service struct {
	registry    *registry.Registry
	profilePath string
}

func New(reg *registry.Registry, profilePath string) *Service {
	return &Service{
		registry:    reg,
		profilePath: profilePath,
	}
}

func (s *Service) ChatCompletion(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.completion")
	defer span.End()

	svc, err := s.registry.ByModel(req.Model)
	if err != nil {
		telemetry.AddErrorAttribute(span, err)
		return nil, err
	}

	telemetry.AddRequestAttributes(span, svc.ServiceName(), req.Model)

	resp, err := svc.ChatCompletion(ctx, req)
	if err != nil {
		telemetry.AddErrorAttribute(span, err)
		return nil, fmt.Errorf("chat service error: %w", err)
	}

	telemetry.AddTokenAttributes(span, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}

// ChatCompletionStream delegates without extra wrapping; the relay turns a
// terminal error into an in-band SSE frame.
func (s *Service) ChatCompletionStream(ctx context.Context, req domain.ChatRequest) (<-chan string, <-chan error) {
	svc, err := s.registry.ByModel(req.Model)
	if err != nil {
		return failedStream(err)
	}
	return svc.ChatCompletionStream(ctx, req)
}

// ResumeMatchStream prepends the resume profile as a system message before
// streaming. The profile is read from disk on every call so out-of-band
// edits take effect immediately.
func (s *Service) ResumeMatchStream(ctx context.Context, req domain.ChatRequest) (<-chan string, <-chan error) {
	profile, err := loadResumeProfile(s.profilePath)
	if err != nil {
		return failedStream(err)
	}

	augmented := req
	augmented.Messages = append([]domain.Message{
		{Role: domain.RoleSystem, Content: domain.Text(resumeSystemPrompt(profile))},
	}, req.Messages...)

	return s.ChatCompletionStream(ctx, augmented)
}

// ServiceFor exposes adapter resolution so the relay can label logs and
// metrics with the provider actually chosen.
func (s *Service) ServiceFor(model string) (registry.Service, error) {
	return s.registry.ByModel(model)
}

// failedStream is a stream that errors immediately without yielding output.
func failedStream(err error) (<-chan string, <-chan error) {
	frames := make(chan string)
	errs := make(chan error, 1)
	errs <- err
	close(frames)
	close(errs)
	return frames, errs
}
