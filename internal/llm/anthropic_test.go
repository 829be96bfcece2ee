package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func TestAnthropicCompleter_Complete_ParsesTextAndUsageFromResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-3-5-sonnet-20241022",
			"content":     []map[string]any{{"type": "text", "text": "cluster looks healthy"}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 18},
		})
	}))
	defer server.Close()

	c := AnthropicCompleter{}
	resp, err := completeAgainst(t, c, server, Request{
		Prompt: "summarize this run", Model: "claude-3-5-sonnet-20241022", Auth: "test-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "cluster looks healthy", resp.Text)
	assert.Equal(t, 120, resp.InputTokensReported)
	assert.Equal(t, 18, resp.OutputTokensReported)
}

func TestAnthropicCompleter_Complete_EmptyTextContentErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_2", "type": "message", "role": "assistant",
			"model": "claude-3-5-sonnet-20241022", "content": []map[string]any{},
			"stop_reason": "end_turn", "usage": map[string]any{"input_tokens": 10, "output_tokens": 0},
		})
	}))
	defer server.Close()

	c := AnthropicCompleter{}
	_, err := completeAgainst(t, c, server, Request{Prompt: "p", Model: "claude-3-5-sonnet-20241022", Auth: "k"})
	assert.Error(t, err)
}

func TestAnthropicCompleter_Complete_SurfacesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	}))
	defer server.Close()

	c := AnthropicCompleter{}
	_, err := completeAgainst(t, c, server, Request{Prompt: "p", Model: "claude-3-5-sonnet-20241022", Auth: "bad-key"})
	assert.Error(t, err)
}

// completeAgainst points the Anthropic client at a local httptest server in
// place of the real API endpoint so Complete can be exercised without
// network access.
func completeAgainst(t *testing.T, c AnthropicCompleter, server *httptest.Server, req Request) (Response, error) {
	t.Helper()
	req.Endpoint = server.URL
	return c.completeWithOptions(context.Background(), req, option.WithHTTPClient(server.Client()))
}
