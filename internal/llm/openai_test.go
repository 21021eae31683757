package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	return newOpenAIProvider(config, "gpt-4o-mini")
}

func chatCompletion(finish string, message map[string]any) map[string]any {
	message["role"] = "assistant"
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": finish}},
		"usage":   map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func TestOpenAIProviderGenerate(t *testing.T) {
	var body map[string]any
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		replyJSON(http.StatusOK, chatCompletion("stop", map[string]any{
			"content": "```json\n{\"satisfied\":true,\"reasoning\":\"ok\"}\n```",
		}))(w, r)
	})

	resp, err := p.Generate(WithSession(context.Background(), "sess-3"), Request{
		System:    "You grade written answers.",
		Messages:  []Message{{Role: RoleUser, Content: "Grade this."}},
		MaxTokens: 128,
		Schema:    judgmentSchema(),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"satisfied":true,"reasoning":"ok"}`, string(resp.Content))
	assert.Equal(t, Usage{InputTokens: 40, OutputTokens: 25, TotalTokens: 65}, resp.Usage)

	assert.Equal(t, "sess-3", body["user"])
	messages, _ := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	format, _ := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
}

func TestOpenAIProviderErrors(t *testing.T) {
	apiError := func(kind string) map[string]any {
		return map[string]any{"error": map[string]any{"type": kind, "message": kind}}
	}

	tests := []struct {
		name    string
		handler http.HandlerFunc
		schema  *Schema
		want    any
	}{
		{"truncated", replyJSON(http.StatusOK, chatCompletion("length", map[string]any{"content": `{"sat`})), nil, new(*ErrMaxTokensExceeded)},
		{"content filter", replyJSON(http.StatusOK, chatCompletion("content_filter", map[string]any{"content": ""})), nil, new(*ErrInvalidResponse)},
		{"refusal", replyJSON(http.StatusOK, chatCompletion("stop", map[string]any{"refusal": "I can't grade this."})), nil, new(*ErrInvalidResponse)},
		{"schema violation", replyJSON(http.StatusOK, chatCompletion("stop", map[string]any{"content": `{"satisfied":"sort of"}`})), judgmentSchema(), new(*ErrInvalidResponse)},
		{"rate limited", replyJSON(http.StatusTooManyRequests, apiError("tokens")), nil, new(*ErrRateLimit)},
		{"server error", replyJSON(http.StatusInternalServerError, apiError("server_error")), nil, new(*ErrProviderUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAIProvider(t, tt.handler)
			_, err := p.Generate(context.Background(), Request{
				Messages:  []Message{{Role: RoleUser, Content: "Grade this."}},
				MaxTokens: 64,
				Schema:    tt.schema,
			})
			require.ErrorAs(t, err, tt.want)
		})
	}
}

func TestOpenAIProviderModel(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4.1-mini"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", p.ModelID())

	_, err = NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o"})
	require.Error(t, err)
}
