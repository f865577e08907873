// Package bedrock serves Anthropic-family models through AWS Bedrock,
// reshaping the Bedrock messages API onto the relay's normalized contract.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"

	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/sse"
)

const (
	serviceName      = "Bedrock"
	anthropicVersion = "bedrock-2023-05-31"
	defaultModel     = "anthropic.claude-3-haiku-20240307-v1:0"
)

type Service struct {
	client    *bedrockruntime.Client
	region    string
	available bool
}

func New(ctx context.Context, region string) (*Service, error) {
	if region == "" {
		return &Service{available: false}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Service{
		client:    bedrockruntime.NewFromConfig(cfg),
		region:    region,
		available: true,
	}, nil
}

func NewWithConfig(cfg aws.Config) *Service {
	return &Service{
		client:    bedrockruntime.NewFromConfig(cfg),
		region:    cfg.Region,
		available: true,
	}
}

func (s *Service) ServiceName() string {
	return serviceName
}

func (s *Service) Available() bool {
	return s.available
}

func (s *Service) ChatCompletion(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%s: %w", serviceName, domain.ErrServiceUnavailable)
	}

	body, err := json.Marshal(toBedrockRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	model := modelOrDefault(req.Model)

	output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, &domain.UpstreamError{Service: serviceName, Err: err}
	}

	var bedrockResp bedrockResponse
	if err := json.Unmarshal(output.Body, &bedrockResp); err != nil {
		return nil, &domain.UpstreamError{Service: serviceName, Err: fmt.Errorf("decode response: %w", err)}
	}

	return toChatResponse(bedrockResp, model), nil
}

func (s *Service) ChatCompletionStream(ctx context.Context, req domain.ChatRequest) (<-chan string, <-chan error) {
	frames := make(chan string)
	errs := make(chan error, 1)

	if !s.Available() {
		errs <- fmt.Errorf("%s: %w", serviceName, domain.ErrServiceUnavailable)
		close(frames)
		close(errs)
		return frames, errs
	}

	go func() {
		defer close(frames)
		defer close(errs)

		body, err := json.Marshal(toBedrockRequest(req))
		if err != nil {
			errs <- fmt.Errorf("marshal request: %w", err)
			return
		}

		model := modelOrDefault(req.Model)

		output, err := s.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(model),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			errs <- &domain.UpstreamError{Service: serviceName, Err: err}
			return
		}

		stream := output.GetStream()
		defer stream.Close()

		id := "chatcmpl-" + uuid.NewString()
		created := time.Now().Unix()

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}

			var streamChunk bedrockStreamChunk
			if err := json.Unmarshal(chunk.Value.Bytes, &streamChunk); err != nil {
				continue
			}

			if streamChunk.Type == "content_block_delta" && streamChunk.Delta != nil {
				frame, err := sse.Frame(domain.StreamChunk{
					ID:      id,
					Object:  "chat.completion.chunk",
					Created: created,
					Model:   model,
					Choices: []domain.StreamChoice{
						{
							Index: 0,
							Delta: domain.Delta{Content: streamChunk.Delta.Text},
						},
					},
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

			if streamChunk.Type == "message_stop" {
				select {
				case frames <- sse.DoneFrame:
				case <-ctx.Done():
				}
				return
			}
		}

		if err := stream.Err(); err != nil {
			errs <- &domain.UpstreamError{Service: serviceName, Err: err}
			return
		}

		select {
		case frames <- sse.DoneFrame:
		case <-ctx.Done():
		}
	}()

	return frames, errs
}

func (s *Service) Models(ctx context.Context) ([]domain.Model, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%s: %w", serviceName, domain.ErrServiceUnavailable)
	}

	models := []domain.Model{
		{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", Object: "model", OwnedBy: "anthropic", Service: serviceName},
		{ID: "anthropic.claude-3-5-haiku-20241022-v1:0", Object: "model", OwnedBy: "anthropic", Service: serviceName},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Object: "model", OwnedBy: "anthropic", Service: serviceName},
		{ID: "amazon.titan-text-express-v1", Object: "model", OwnedBy: "amazon", Service: serviceName},
		{ID: "meta.llama3-70b-instruct-v1:0", Object: "model", OwnedBy: "meta", Service: serviceName},
	}
	return models, nil
}

// HealthCheck reports configuration state only. Bedrock has no cheap probe
// endpoint, so an available service is assumed healthy.
func (s *Service) HealthCheck(ctx context.Context) domain.HealthStatus {
	status := domain.HealthStatus{
		Service:          serviceName,
		Available:        s.Available(),
		APIKeyConfigured: s.region != "",
		Status:           domain.StatusUnhealthy,
	}
	if s.Available() {
		status.Status = domain.StatusHealthy
	}
	return status
}

func modelOrDefault(model string) string {
	if model == "" {
		return defaultModel
	}
	return model
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
	System           string           `json:"system,omitempty"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      bedrockUsage   `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type bedrockStreamChunk struct {
	Type  string       `json:"type"`
	Delta *streamDelta `json:"delta,omitempty"`
}

type streamDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func toBedrockRequest(req domain.ChatRequest) bedrockRequest {
	var system string
	messages := make([]bedrockMessage, 0, len(req.Messages))

	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			system = m.Content.String()
			continue
		}
		messages = append(messages, bedrockMessage{
			Role:    m.Role,
			Content: m.Content.String(),
		})
	}

	maxTokens := domain.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	temperature := domain.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return bedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages:         messages,
		System:           system,
		Temperature:      temperature,
	}
}

func toChatResponse(resp bedrockResponse, model string) *domain.ChatResponse {
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	finishReason := "stop"
	if resp.StopReason == "max_tokens" {
		finishReason = "length"
	}

	id := resp.ID
	if id == "" {
		id = "chatcmpl-" + uuid.NewString()
	}

	return &domain.ChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []domain.Choice{
			{
				Index: 0,
				Message: &domain.Message{
					Role:    domain.RoleAssistant,
					Content: domain.Text(text),
				},
				FinishReason: finishReason,
			},
		},
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}
