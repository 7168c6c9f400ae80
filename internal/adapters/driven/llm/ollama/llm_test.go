package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.0, req.Options.Temperature, 1e-9)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "  echo: " + req.Messages[0].Content + "\n"},
			Done:    true,
		})
	}))
	defer server.Close()

	s := NewLLMService(LLMConfig{BaseURL: server.URL})
	out, err := s.Complete(context.Background(), "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", out)
	assert.Equal(t, DefaultLLMModel, s.ModelName())
}

func TestComplete_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewLLMService(LLMConfig{BaseURL: server.URL}).Complete(context.Background(), "q", 0.7)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}
