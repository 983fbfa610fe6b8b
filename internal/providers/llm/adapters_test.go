package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompatible_Chat(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatCompletionsPath, r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `{"model":"gpt-4o-mini-2024","choices":[{"message":{"role":"assistant","content":"pong"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "sk-test", "gpt-4o-mini")
	resp, err := p.Chat(context.Background(), core.ChatRequest{
		SystemPrompt: "be brief",
		Messages:     []core.Message{{Role: core.RoleUser, Content: "ping"}},
		MaxTokens:    64,
	})
	require.NoError(t, err)

	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)
	assert.Equal(t, "gpt-4o-mini-2024", resp.Model)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 64, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, core.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.False(t, got.Stream)
}

func TestOpenAICompatible_ChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewCustomOpenAI(srv.URL, "", "local")
	_, err := p.Chat(context.Background(), core.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 429")
}

func TestOpenAICompatible_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		if assert.NotNil(t, req.StreamOptions) {
			assert.True(t, req.StreamOptions.IncludeUsage)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"model":"m1","choices":[{"delta":{"role":"assistant"}}]}`,
			`{"model":"m1","choices":[{"delta":{"content":"Hel"}}]}`,
			`{"model":"m1","choices":[{"delta":{"content":"lo"}}]}`,
			`{"model":"m1","choices":[],"usage":{"prompt_tokens":7,"completion_tokens":2}}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "", "llama3.2")

	var deltas []string
	resp, err := p.Stream(context.Background(), core.ChatRequest{
		Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}},
	}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, 7, resp.InputTokens)
	assert.Equal(t, 2, resp.OutputTokens)
	assert.Equal(t, "m1", resp.Model)
}

func TestOpenAICompatible_StreamErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"overloaded\"}}\n\n")
	}))
	defer srv.Close()

	p := NewCustomOpenAI(srv.URL, "", "local")
	_, err := p.Stream(context.Background(), core.ChatRequest{}, func(string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestOpenRouter_Models(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, core.TuskName, r.Header.Get("X-Title"))
		fmt.Fprint(w, `{"data":[{"id":"google/gemma-3-27b-it:free","name":"Gemma 3 27B","context_length":131072},{"id":"openai/gpt-4o"}]}`)
	}))
	defer srv.Close()

	p := newOpenRouterAt(srv.URL, "or-key", "google/gemma-3-27b-it:free")
	models, err := p.Models(context.Background())
	require.NoError(t, err)

	require.Len(t, models, 2)
	assert.Equal(t, "Gemma 3 27B", models[0].Name)
	assert.Equal(t, 131072, models[0].ContextLength)
	assert.Equal(t, "openai/gpt-4o", models[1].Name)
}

func TestOllama_Models(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"llama3.2"},{"name":"qwen2.5"}]}`)
	}))
	defer srv.Close()

	models, err := NewOllama(srv.URL, "", "llama3.2").Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "qwen2.5", models[1].ID)
}

func TestAnthropic_Chat(t *testing.T) {
	type textBlock struct {
		Text string `json:"text"`
	}
	type turn struct {
		Role string `json:"role"`
	}
	var body struct {
		Model    string      `json:"model"`
		System   []textBlock `json:"system"`
		Messages []turn      `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-20241022",`+
			`"content":[{"type":"text","text":"Bonjour"}],"stop_reason":"end_turn","stop_sequence":null,`+
			`"usage":{"input_tokens":21,"output_tokens":4}}`)
	}))
	defer srv.Close()

	p := NewAnthropic("sk-ant", "claude-3-5-haiku-latest", option.WithBaseURL(srv.URL))
	resp, err := p.Chat(context.Background(), core.ChatRequest{
		SystemPrompt: "You translate.",
		Messages: []core.Message{
			{Role: core.RoleUser, Content: "hello"},
			{Role: core.RoleSystem, Content: "Summary of earlier conversation:\nnone"},
			{Role: core.RoleAssistant, Content: "ok"},
			{Role: core.RoleUser, Content: "in french"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bonjour", resp.Content)
	assert.Equal(t, 21, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)
	assert.Equal(t, "claude-3-5-haiku-20241022", resp.Model)

	assert.Equal(t, "claude-3-5-haiku-latest", body.Model)
	require.Len(t, body.System, 1)
	assert.Contains(t, body.System[0].Text, "You translate.")
	assert.Contains(t, body.System[0].Text, "Summary of earlier conversation")
	require.Len(t, body.Messages, 3, "system turns are folded out")
	assert.Equal(t, "assistant", body.Messages[1].Role)
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem(core.ChatRequest{
		Messages: []core.Message{
			{Role: core.RoleSystem, Content: "a"},
			{Role: core.RoleUser, Content: "b"},
		},
	})
	assert.Equal(t, "a", system)
	assert.Equal(t, []core.Message{{Role: core.RoleUser, Content: "b"}}, turns)
}
