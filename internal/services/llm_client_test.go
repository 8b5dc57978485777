package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"memory_stitcher_go_backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGatewayGenerate(t *testing.T) {
	var received struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "What happened next?"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	gateway := services.NewOpenAIGateway("test-key", srv.URL+"/v1", "test-model", 5*time.Second)
	reply, err := gateway.Generate(context.Background(), []services.ChatMessage{
		{Role: "system", Content: "Interview Ada."},
		{Role: "user", Content: "I moved to Porto."},
	}, 200, 0.5)

	require.NoError(t, err)
	assert.Equal(t, "What happened next?", reply)
	assert.Equal(t, "test-model", received.Model)
	assert.Equal(t, 200, received.MaxTokens)
	assert.InDelta(t, 0.5, received.Temperature, 0.0001)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "I moved to Porto.", received.Messages[1].Content)
}

func TestOpenAIGatewayErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"provider error", http.StatusInternalServerError, `{"error": {"message": "boom", "type": "server_error"}}`},
		{"empty content", http.StatusOK, `{"id": "x", "choices": [{"index": 0, "message": {"role": "assistant", "content": "  "}}]}`},
		{"no choices", http.StatusOK, `{"id": "x", "choices": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gateway := services.NewOpenAIGateway("k", srv.URL+"/v1", "m", time.Second)
			_, err := gateway.Generate(context.Background(), []services.ChatMessage{{Role: "user", Content: "hi"}}, 10, 0)
			assert.ErrorIs(t, err, services.ErrGenerationFailed)
		})
	}
}
