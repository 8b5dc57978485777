package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

var (
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_stitcher_llm_requests_total",
			Help: "Total number of requests to the LLM provider.",
		},
		[]string{"provider", "model", "status"},
	)
	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_stitcher_llm_request_duration_seconds",
			Help:    "Histogram of LLM request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)
	llmTotalTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_stitcher_llm_total_tokens",
			Help:    "Histogram of total token counts (prompt + completion).",
			Buckets: prometheus.LinearBuckets(500, 500, 20),
		},
		[]string{"provider", "model"},
	)
)

// OpenAIGateway talks to any OpenAI-compatible chat completion endpoint.
type OpenAIGateway struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGateway creates the adapter. An empty baseURL uses api.openai.com.
func NewOpenAIGateway(apiKey, baseURL, model string, timeout time.Duration) *OpenAIGateway {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{}
	return &OpenAIGateway{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (g *OpenAIGateway) Generate(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float32) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	llmRequestDuration.WithLabelValues("openai", g.model).Observe(time.Since(start).Seconds())
	if err != nil {
		llmRequestsTotal.WithLabelValues("openai", g.model, "error").Inc()
		log.Error().Err(err).Str("model", g.model).Dur("duration", time.Since(start)).Msg("LLM request failed")
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		llmRequestsTotal.WithLabelValues("openai", g.model, "empty").Inc()
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	llmRequestsTotal.WithLabelValues("openai", g.model, "success").Inc()
	llmTotalTokens.WithLabelValues("openai", g.model).Observe(float64(resp.Usage.TotalTokens))
	log.Debug().
		Str("model", g.model).
		Int("promptTokens", resp.Usage.PromptTokens).
		Int("completionTokens", resp.Usage.CompletionTokens).
		Dur("duration", time.Since(start)).
		Msg("LLM request completed")

	return resp.Choices[0].Message.Content, nil
}
