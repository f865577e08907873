package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/registry"
	"github.com/lgforest/chat-relay/internal/sse"
)

type fakeService struct {
	name       string
	available  bool
	lastReq    *domain.ChatRequest
	resp       *domain.ChatResponse
	err        error
	streamData []string
}

func (f *fakeService) ServiceName() string { return f.name }
func (f *fakeService) Available() bool     { return f.available }
func (f *fakeService) ChatCompletion(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.lastReq = &req
	return f.resp, f.err
}
func (f *fakeService) ChatCompletionStream(ctx context.Context, req domain.ChatRequest) (<-chan string, <-chan error) {
	f.lastReq = &req
	frames := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(frames)
		defer close(errs)
		if f.err != nil {
			errs <- f.err
			return
		}
		for _, d := range f.streamData {
			frames <- d
		}
		frames <- sse.DoneFrame
	}()
	return frames, errs
}
func (f *fakeService) Models(ctx context.Context) ([]domain.Model, error) { return nil, nil }
func (f *fakeService) HealthCheck(ctx context.Context) domain.HealthStatus {
	return domain.HealthStatus{Service: f.name, Available: f.available, Status: domain.StatusHealthy}
}

func newService(t *testing.T, svc *fakeService, profilePath string) *Service {
	t.Helper()
	reg := registry.New([]registry.Entry{
		{Type: registry.TypeDeepSeek, Service: svc},
	}, registry.DefaultRules)
	return New(reg, profilePath)
}

func drain(frames <-chan string, errs <-chan error) ([]string, error) {
	var out []string
	for f := range frames {
		out = append(out, f)
	}
	return out, <-errs
}

func TestChatCompletion_WrapsAdapterError(t *testing.T) {
	svc := &fakeService{name: "DeepSeek", available: true, err: errors.New("kaboom")}
	s := newService(t, svc, "unused")

	_, err := s.ChatCompletion(context.Background(), domain.ChatRequest{Model: "deepseek-chat"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "chat service error") {
		t.Errorf("expected user-facing wrapper, got %v", err)
	}
	if !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("expected cause preserved, got %v", err)
	}
}

func TestChatCompletion_NoServiceAvailable(t *testing.T) {
	svc := &fakeService{name: "DeepSeek", available: false}
	s := newService(t, svc, "unused")

	_, err := s.ChatCompletion(context.Background(), domain.ChatRequest{Model: "unknown-model-xyz"})
	if !errors.Is(err, domain.ErrNoServiceAvailable) {
		t.Errorf("expected ErrNoServiceAvailable unwrapped, got %v", err)
	}
}

func TestChatCompletionStream_Delegates(t *testing.T) {
	svc := &fakeService{
		name:       "DeepSeek",
		available:  true,
		streamData: []string{"data: {\"a\":1}\n\n"},
	}
	s := newService(t, svc, "unused")

	frames, err := drain(s.ChatCompletionStream(context.Background(), domain.ChatRequest{Model: "deepseek-chat"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 2 || frames[1] != sse.DoneFrame {
		t.Errorf("unexpected frames: %q", frames)
	}
}

func TestResumeMatchStream_PrependsSystemMessage(t *testing.T) {
	profilePath := filepath.Join(t.TempDir(), "profile.md")
	if err := os.WriteFile(profilePath, []byte("Ten years of Go."), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := &fakeService{name: "DeepSeek", available: true}
	s := newService(t, svc, profilePath)

	req := domain.ChatRequest{
		Model: "deepseek-chat",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: domain.Text("does this JD match?")},
		},
	}

	if _, err := drain(s.ResumeMatchStream(context.Background(), req)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if svc.lastReq == nil {
		t.Fatal("adapter never called")
	}
	msgs := svc.lastReq.Messages
	if len(msgs) != 2 {
		t.Fatalf("expected system message prepended, got %d messages", len(msgs))
	}
	if msgs[0].Role != domain.RoleSystem {
		t.Errorf("first message role = %q, want system", msgs[0].Role)
	}
	if !strings.Contains(msgs[0].Content.String(), "Ten years of Go.") {
		t.Errorf("profile text missing from system prompt: %q", msgs[0].Content.String())
	}
	if msgs[1].Content.String() != "does this JD match?" {
		t.Errorf("caller message not preserved: %q", msgs[1].Content.String())
	}
}

func TestResumeMatchStream_MissingProfileFailsWithoutOutput(t *testing.T) {
	svc := &fakeService{name: "DeepSeek", available: true}
	s := newService(t, svc, filepath.Join(t.TempDir(), "missing.md"))

	frames, err := drain(s.ResumeMatchStream(context.Background(), domain.ChatRequest{Model: "deepseek-chat"}))
	if err == nil {
		t.Fatal("expected configuration error")
	}

	var configErr *domain.ConfigurationError
	if !errors.As(err, &configErr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("stream must error before yielding output, got %q", frames)
	}
	if svc.lastReq != nil {
		t.Error("adapter must not be called when the profile is unreadable")
	}
}

func TestResumeMatchStream_ReadsProfileFresh(t *testing.T) {
	profilePath := filepath.Join(t.TempDir(), "profile.md")
	if err := os.WriteFile(profilePath, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := &fakeService{name: "DeepSeek", available: true}
	s := newService(t, svc, profilePath)

	req := domain.ChatRequest{Model: "deepseek-chat"}
	if _, err := drain(s.ResumeMatchStream(context.Background(), req)); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(profilePath, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := drain(s.ResumeMatchStream(context.Background(), req)); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(svc.lastReq.Messages[0].Content.String(), "v2") {
		t.Error("profile edit not picked up on the next call")
	}
}
