package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lgforest/chat-relay/internal/chat"
	"github.com/lgforest/chat-relay/internal/domain"
	"github.com/lgforest/chat-relay/internal/metrics"
	"github.com/lgforest/chat-relay/internal/registry"
	"github.com/lgforest/chat-relay/internal/sse"
)

type HandlerConfig struct {
	Chat           *chat.Service
	Registry       *registry.Registry
	AllowedOrigins []string
}

type Handler struct {
	chat           *chat.Service
	registry       *registry.Registry
	allowedOrigins []string
	mux            *http.ServeMux
}

type streamFunc func(r *http.Request, req domain.ChatRequest) (<-chan string, <-chan error)

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		chat:           cfg.Chat,
		registry:       cfg.Registry,
		allowedOrigins: cfg.AllowedOrigins,
		mux:            http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /chat/completions", h.handleChatCompletions)
	h.mux.HandleFunc("POST /chat/stream", h.handleChatStream)
	h.mux.HandleFunc("POST /chat/resume-match", h.handleResumeMatch)
	h.mux.HandleFunc("OPTIONS /chat/", h.handlePreflight)
	h.mux.HandleFunc("GET /chat/models", h.handleListModels)
	h.mux.HandleFunc("GET /chat/health", h.handleServicesHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	requestID := requestID(r)

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Stream {
		h.streamResponse(w, r, req, "completions", func(r *http.Request, req domain.ChatRequest) (<-chan string, <-chan error) {
			return h.chat.ChatCompletionStream(r.Context(), req)
		})
		return
	}

	provider := "none"
	if svc, err := h.chat.ServiceFor(req.Model); err == nil {
		provider = svc.ServiceName()
	}

	resp, err := h.chat.ChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		status := errorStatus(err)
		metrics.RecordRequest(provider, req.Model, "error", duration.Seconds())
		metrics.RecordProviderError(provider, errorType(err))
		slog.Error("chat completion failed",
			"request_id", requestID,
			"provider", provider,
			"model", req.Model,
			"error", err,
		)
		writeError(w, status, err.Error())
		return
	}

	metrics.RecordRequest(provider, resp.Model, "success", duration.Seconds())
	metrics.RecordTokens(provider, resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	slog.Info("chat completion",
		"request_id", requestID,
		"provider", provider,
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"latency_ms", duration.Milliseconds(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.streamResponse(w, r, req, "stream", func(r *http.Request, req domain.ChatRequest) (<-chan string, <-chan error) {
		return h.chat.ChatCompletionStream(r.Context(), req)
	})
}

func (h *Handler) handleResumeMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.streamResponse(w, r, req, "resume-match", func(r *http.Request, req domain.ChatRequest) (<-chan string, <-chan error) {
		return h.chat.ResumeMatchStream(r.Context(), req)
	})
}

// streamResponse relays a frame stream over SSE. Headers are flushed before
// the first frame so the client can start reading incrementally; any failure
// after that point is delivered in-band because the status is already
// committed.
func (h *Handler) streamResponse(w http.ResponseWriter, r *http.Request, req domain.ChatRequest, endpoint string, fn streamFunc) {
	ctx := r.Context()
	start := time.Now()
	requestID := requestID(r)

	provider := "none"
	if svc, err := h.chat.ServiceFor(req.Model); err == nil {
		provider = svc.ServiceName()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	h.setStreamHeaders(w, r, requestID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	req.Stream = true
	frames, errs := fn(r, req)

	metrics.IncActiveStreams()
	defer metrics.DecActiveStreams()

	sent := 0
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				// The adapter closes both channels together; a terminal
				// error may still be waiting.
				select {
				case err, pending := <-errs:
					if pending && err != nil {
						h.endStreamWithError(w, flusher, err, requestID, provider, endpoint)
						return
					}
				default:
				}
				slog.Info("stream completed",
					"request_id", requestID,
					"provider", provider,
					"endpoint", endpoint,
					"frames", sent,
					"latency_ms", time.Since(start).Milliseconds(),
				)
				return
			}
			if _, err := io.WriteString(w, frame); err != nil {
				slog.Warn("stream write failed, client gone",
					"request_id", requestID, "error", err)
				return
			}
			flusher.Flush()
			sent++
			metrics.RecordStreamChunk(endpoint)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				h.endStreamWithError(w, flusher, err, requestID, provider, endpoint)
				return
			}

		case <-ctx.Done():
			// Client disconnected; the request context cancels the
			// upstream call, so nothing drains with no reader.
			slog.Info("client disconnected mid-stream",
				"request_id", requestID, "endpoint", endpoint, "frames", sent)
			return
		}
	}
}

func (h *Handler) endStreamWithError(w http.ResponseWriter, flusher http.Flusher, err error, requestID, provider, endpoint string) {
	slog.Error("stream failed",
		"request_id", requestID,
		"provider", provider,
		"endpoint", endpoint,
		"error", err,
	)
	metrics.RecordProviderError(provider, errorType(err))
	io.WriteString(w, sse.ErrorFrame(err.Error()))
	flusher.Flush()
}

func (h *Handler) setStreamHeaders(w http.ResponseWriter, r *http.Request, requestID string) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-ID", requestID)
	h.setCORSHeaders(w, r)
}

func (h *Handler) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := h.allowOrigin(r)
	if origin == "" {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control, Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Add("Vary", "Origin")
}

func (h *Handler) allowOrigin(r *http.Request) string {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return ""
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if allowed == origin {
			return origin
		}
	}
	return ""
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	groups := h.registry.AllModels(r.Context())

	var all []domain.Model
	for _, g := range groups {
		all = append(all, g.Models...)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(domain.ModelsResponse{
		Object: "list",
		Data:   all,
	})
}

func (h *Handler) handleServicesHealth(w http.ResponseWriter, r *http.Request) {
	statuses := h.registry.AllServicesStatus(r.Context())

	overall := domain.StatusHealthy
	for _, s := range statuses {
		if s.Status != domain.StatusHealthy && s.Status != domain.StatusMock {
			overall = domain.StatusDegraded
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   overall,
		"services": statuses,
	})
}

func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoServiceAvailable),
		errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnknownServiceType):
		return http.StatusBadRequest
	}

	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadGateway
	}

	var configErr *domain.ConfigurationError
	if errors.As(err, &configErr) {
		return http.StatusInternalServerError
	}

	return http.StatusInternalServerError
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoServiceAvailable):
		return "no_service"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	}

	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return "upstream"
	}

	var configErr *domain.ConfigurationError
	if errors.As(err, &configErr) {
		return "configuration"
	}

	return "internal"
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "error",
			"code":    status,
		},
	})
}
