package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"memory_stitcher_go_backend/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// GeminiGateway generates replies with Google's Gemini models.
type GeminiGateway struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiGateway(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiGateway{client: client, model: model, timeout: timeout}, nil
}

func (g *GeminiGateway) Close() error {
	return g.client.Close()
}

func (g *GeminiGateway) Generate(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float32) (string, error) {
	system, history, last, err := toGeminiContents(messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// GenerativeModel carries the system instruction, so it is built per call.
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SystemInstruction = system

	cs := model.StartChat()
	cs.History = history

	start := time.Now()
	resp, err := cs.SendMessage(ctx, last...)
	llmRequestDuration.WithLabelValues("gemini", g.model).Observe(time.Since(start).Seconds())
	if err != nil {
		llmRequestsTotal.WithLabelValues("gemini", g.model, "error").Inc()
		log.Error().Err(err).Str("model", g.model).Msg("LLM request failed")
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		llmRequestsTotal.WithLabelValues("gemini", g.model, "empty").Inc()
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}
	llmRequestsTotal.WithLabelValues("gemini", g.model, "success").Inc()
	if resp.UsageMetadata != nil {
		llmTotalTokens.WithLabelValues("gemini", g.model).Observe(float64(resp.UsageMetadata.TotalTokenCount))
	}
	return text, nil
}

// geminiOpening stands in for the user turn Gemini requires before an opening greeting.
const geminiOpening = "Hello."

// toGeminiContents splits the formatted conversation into Gemini's shape: system entries
// become the system instruction, the final entry is the message to send and everything
// in between is chat history. Gemini calls the assistant role "model" and needs turns
// to alternate starting with the user, so consecutive same-role entries are merged.
func toGeminiContents(messages []ChatMessage) (*genai.Content, []*genai.Content, []genai.Part, error) {
	var systemParts []genai.Part
	var turns []*genai.Content
	for _, m := range messages {
		var role string
		switch m.Role {
		case models.RoleSystem:
			systemParts = append(systemParts, genai.Text(m.Content))
			continue
		case models.RoleUser:
			role = "user"
		case models.RoleAssistant:
			role = "model"
		default:
			return nil, nil, nil, fmt.Errorf("unsupported role %q", m.Role)
		}
		if len(turns) == 0 && role == "model" {
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(geminiOpening)}})
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Parts = append(turns[n-1].Parts, genai.Text(m.Content))
			continue
		}
		turns = append(turns, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return nil, nil, nil, fmt.Errorf("conversation must end with a user turn")
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}
	last := turns[len(turns)-1]
	return system, turns[:len(turns)-1], last.Parts, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
