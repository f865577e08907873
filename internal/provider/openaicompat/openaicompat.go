// Package openaicompat implements the relay's service contract against any
// OpenAI-compatible chat-completions API. Vendor packages bind it to their
// base URL, default model and fallback model list.
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/httputil"
	"github.com/lgforest/chat-relay/internal/sse"
)

type Config struct {
	ServiceName    string
	APIKey         string
	BaseURL        string
	DefaultModel   string
	FallbackModels []domain.Model

	// KeepModel filters the upstream model listing down to the vendor's own
	// family. Nil keeps everything.
	KeepModel func(id string) bool

	Client       *http.Client
	StreamClient *http.Client
}

type Service struct {
	name           string
	apiKey         string
	baseURL        string
	defaultModel   string
	fallbackModels []domain.Model
	keepModel      func(id string) bool
	client         *http.Client
	streamClient   *http.Client
	available      bool
}

func New(cfg Config) *Service {
	client := cfg.Client
	if client == nil {
		client = httputil.DefaultClient()
	}
	streamClient := cfg.StreamClient
	if streamClient == nil {
		streamClient = httputil.StreamClient()
	}

	s := &Service{
		name:           cfg.ServiceName,
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		defaultModel:   cfg.DefaultModel,
		fallbackModels: cfg.FallbackModels,
		keepModel:      cfg.KeepModel,
		client:         client,
		streamClient:   streamClient,
		available:      cfg.APIKey != "" && cfg.BaseURL != "",
	}

	if !s.available {
		slog.Warn("AI service has no API key configured", "service", s.name)
	} else {
		slog.Info("AI service initialized", "service", s.name, "base_url", s.baseURL)
	}

	return s
}

func (s *Service) ServiceName() string {
	return s.name
}

// Available reports whether the service was constructed with a credential.
// It never touches the network and never changes after construction.
func (s *Service) Available() bool {
	return s.available
}

type upstreamRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Stream      bool             `json:"stream"`
}

type upstreamChoice struct {
	Index        int            `json:"index"`
	Message      domain.Message `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type upstreamResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []upstreamChoice `json:"choices"`
	Usage   *domain.Usage    `json:"usage"`
}

func (s *Service) buildRequest(req domain.ChatRequest, stream bool) upstreamRequest {
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}
	temperature := domain.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := domain.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	return upstreamRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}

func (s *Service) ChatCompletion(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%s: %w", s.name, domain.ErrServiceUnavailable)
	}

	body, err := json.Marshal(s.buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &domain.UpstreamError{Service: s.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &domain.UpstreamError{
			Service: s.name,
			Err:     fmt.Errorf("status=%d body=%s", resp.StatusCode, string(bodyBytes)),
		}
	}

	var upstream upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&upstream); err != nil {
		return nil, &domain.UpstreamError{Service: s.name, Err: fmt.Errorf("decode response: %w", err)}
	}

	return normalizeResponse(upstream), nil
}

// normalizeResponse maps a vendor payload onto the normalized shape, filling
// the defaults vendors are allowed to omit.
func normalizeResponse(upstream upstreamResponse) *domain.ChatResponse {
	object := upstream.Object
	if object == "" {
		object = "chat.completion"
	}

	choices := make([]domain.Choice, 0, len(upstream.Choices))
	for _, c := range upstream.Choices {
		finishReason := c.FinishReason
		if finishReason == "" {
			finishReason = "stop"
		}
		msg := c.Message
		choices = append(choices, domain.Choice{
			Index:        c.Index,
			Message:      &msg,
			FinishReason: finishReason,
		})
	}

	usage := domain.Usage{}
	if upstream.Usage != nil {
		usage = *upstream.Usage
	}

	return &domain.ChatResponse{
		ID:      upstream.ID,
		Object:  object,
		Created: upstream.Created,
		Model:   upstream.Model,
		Choices: choices,
		Usage:   usage,
	}
}

// ChatCompletionStream opens an upstream SSE stream and reshapes each vendor
// chunk into a normalized ready-to-write frame. The frame channel carries
// zero or more data frames; a stream that ends normally carries exactly one
// trailing DONE frame, while a mid-stream failure surfaces on the error
// channel with no DONE.
func (s *Service) ChatCompletionStream(ctx context.Context, req domain.ChatRequest) (<-chan string, <-chan error) {
	frames := make(chan string)
	errs := make(chan error, 1)

	if !s.Available() {
		errs <- fmt.Errorf("%s: %w", s.name, domain.ErrServiceUnavailable)
		close(frames)
		close(errs)
		return frames, errs
	}

	go func() {
		defer close(frames)
		defer close(errs)

		body, err := json.Marshal(s.buildRequest(req, true))
		if err != nil {
			errs <- fmt.Errorf("marshal request: %w", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			errs <- fmt.Errorf("create request: %w", err)
			return
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := s.streamClient.Do(httpReq)
		if err != nil {
			errs <- &domain.UpstreamError{Service: s.name, Err: err}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			errs <- &domain.UpstreamError{
				Service: s.name,
				Err:     fmt.Errorf("status=%d body=%s", resp.StatusCode, string(bodyBytes)),
			}
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				send(ctx, frames, sse.DoneFrame)
				return
			}

			frame, err := normalizeChunk([]byte(data))
			if err != nil {
				// Skip-and-continue: one malformed chunk must not kill
				// the stream.
				slog.Warn("dropping malformed stream chunk", "service", s.name, "error", err)
				continue
			}

			if !send(ctx, frames, frame) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- &domain.UpstreamError{Service: s.name, Err: err}
			return
		}

		// Upstream closed cleanly without a [DONE] marker; terminate the
		// client stream the same way as a marked end.
		send(ctx, frames, sse.DoneFrame)
	}()

	return frames, errs
}

func normalizeChunk(data []byte) (string, error) {
	var chunk domain.StreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", fmt.Errorf("decode chunk: %w", err)
	}
	return sse.Frame(chunk)
}

func send(ctx context.Context, frames chan<- string, frame string) bool {
	select {
	case frames <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

// Models lists the vendor's models, degrading to the hardcoded fallback list
// when the upstream listing fails. Only an unavailable service is an error.
func (s *Service) Models(ctx context.Context) ([]domain.Model, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%s: %w", s.name, domain.ErrServiceUnavailable)
	}

	models, err := s.listModels(ctx)
	if err != nil {
		slog.Warn("model listing failed, using fallback list", "service", s.name, "error", err)
		models = append([]domain.Model(nil), s.fallbackModels...)
	}

	out := make([]domain.Model, 0, len(models))
	for _, m := range models {
		if s.keepModel != nil && !s.keepModel(m.ID) {
			continue
		}
		m.Service = s.name
		out = append(out, m)
	}
	return out, nil
}

func (s *Service) listModels(ctx context.Context) ([]domain.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &domain.UpstreamError{Service: s.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{Service: s.name, Err: fmt.Errorf("status=%d", resp.StatusCode)}
	}

	var modelsResp domain.ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, &domain.UpstreamError{Service: s.name, Err: fmt.Errorf("decode response: %w", err)}
	}

	return modelsResp.Data, nil
}

// HealthCheck probes the model-listing endpoint. It always returns a status
// record; probe failures are reported, never raised.
func (s *Service) HealthCheck(ctx context.Context) domain.HealthStatus {
	status := domain.HealthStatus{
		Service:          s.name,
		Available:        s.Available(),
		APIKeyConfigured: s.apiKey != "",
		Status:           domain.StatusUnhealthy,
	}

	if !s.Available() {
		return status
	}

	if _, err := s.listModels(ctx); err != nil {
		slog.Warn("health check failed", "service", s.name, "error", err)
		status.Status = domain.StatusError
		status.Error = err.Error()
		return status
	}

	status.Status = domain.StatusHealthy
	return status
}
