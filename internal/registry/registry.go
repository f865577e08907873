// Package registry holds the configured AI services and picks one per
// request. It is built once at startup and read-only afterwards, so it needs
// no locking.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lgforest/chat-relay/internal/domain"
)

// Service is the uniform contract every vendor adapter implements. Vendors
// differ in auth, wire shapes and defaults; from here on they are
// interchangeable.
type Service interface {
	ServiceName() string
	Available() bool
	ChatCompletion(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
	ChatCompletionStream(ctx context.Context, req domain.ChatRequest) (<-chan string, <-chan error)
	Models(ctx context.Context) ([]domain.Model, error)
	HealthCheck(ctx context.Context) domain.HealthStatus
}

type ServiceType string

const (
	TypeDeepSeek ServiceType = "deepseek"
	TypeKimi     ServiceType = "kimi"
	TypeOpenAI   ServiceType = "openai"
	TypeBedrock  ServiceType = "bedrock"
	TypeMock     ServiceType = "mock"
)

// Entry registers one service. Registration order is the default-selection
// priority.
type Entry struct {
	Type    ServiceType
	Service Service
}

// Rule routes model names containing Token to a service type. Rules are
// evaluated in declared order and the first match wins; the declared order
// is the explicit precedence, so overlapping tokens are unambiguous.
type Rule struct {
	Token string
	Type  ServiceType
}

// DefaultRules maps the known vendor model families.
var DefaultRules = []Rule{
	{Token: "deepseek", Type: TypeDeepSeek},
	{Token: "moonshot", Type: TypeKimi},
	{Token: "kimi", Type: TypeKimi},
	{Token: "anthropic.", Type: TypeBedrock},
	{Token: "titan", Type: TypeBedrock},
	{Token: "llama", Type: TypeBedrock},
	{Token: "gpt", Type: TypeOpenAI},
	{Token: "o1", Type: TypeOpenAI},
}

type Registry struct {
	entries []Entry
	index   map[ServiceType]Service
	rules   []Rule
}

func New(entries []Entry, rules []Rule) *Registry {
	index := make(map[ServiceType]Service, len(entries))
	for _, e := range entries {
		index[e.Type] = e.Service
	}
	return &Registry{
		entries: entries,
		index:   index,
		rules:   rules,
	}
}

// Get looks a service up by its type tag.
func (r *Registry) Get(t ServiceType) (Service, error) {
	svc, ok := r.index[t]
	if !ok {
		return nil, fmt.Errorf("%q: %w", t, domain.ErrUnknownServiceType)
	}
	return svc, nil
}

// ByModel routes a model name through the rule table; names matching no
// registered vendor fall back to Default.
func (r *Registry) ByModel(model string) (Service, error) {
	lower := strings.ToLower(model)
	for _, rule := range r.rules {
		if !strings.Contains(lower, rule.Token) {
			continue
		}
		if svc, ok := r.index[rule.Type]; ok {
			return svc, nil
		}
	}
	return r.Default()
}

// Default returns the first available service in registration order.
func (r *Registry) Default() (Service, error) {
	for _, e := range r.entries {
		if e.Service.Available() {
			return e.Service, nil
		}
	}
	return nil, domain.ErrNoServiceAvailable
}

// AllServicesStatus health-checks every registered service. It never fails
// as a whole: one record per service, with panics from a misbehaving
// adapter converted into an error record for that service only.
func (r *Registry) AllServicesStatus(ctx context.Context) []domain.HealthStatus {
	statuses := make([]domain.HealthStatus, 0, len(r.entries))
	for _, e := range r.entries {
		status := safeHealthCheck(ctx, e.Service)
		status.Type = string(e.Type)
		statuses = append(statuses, status)
	}
	return statuses
}

func safeHealthCheck(ctx context.Context, svc Service) (status domain.HealthStatus) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("health check panicked", "service", svc.ServiceName(), "panic", rec)
			status = domain.HealthStatus{
				Service: svc.ServiceName(),
				Status:  domain.StatusError,
				Error:   fmt.Sprintf("health check panicked: %v", rec),
			}
		}
	}()
	return svc.HealthCheck(ctx)
}

// AllModels aggregates model listings from every available service. A
// failing listing is logged and skipped, never fatal to the aggregate.
func (r *Registry) AllModels(ctx context.Context) []domain.ServiceModels {
	var all []domain.ServiceModels
	for _, e := range r.entries {
		if !e.Service.Available() {
			continue
		}
		models, err := e.Service.Models(ctx)
		if err != nil {
			slog.Warn("failed to list models", "service", e.Service.ServiceName(), "error", err)
			continue
		}
		all = append(all, domain.ServiceModels{
			Service: e.Service.ServiceName(),
			Models:  models,
		})
	}
	return all
}

// Entries exposes registration order for status reporting.
func (r *Registry) Entries() []Entry {
	return r.entries
}
