package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Replier answers the last user message of a chat request.
type Replier func(prompt string) string

// FakeOpenAI is an OpenAI-compatible chat server for end-to-end tests. It
// serves /v1/chat/completions in blocking and streaming mode and a fixed
// /v1/models catalogue.
type FakeOpenAI struct {
	*httptest.Server
	reply Replier

	mu       sync.Mutex
	requests int
}

func NewFakeOpenAI(t *testing.T, reply Replier) *FakeOpenAI {
	t.Helper()
	f := &FakeOpenAI{reply: reply}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", f.completions)
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "fake-large", "context_length": 32000}, {"id": "fake-small"}},
		})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *FakeOpenAI) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *FakeOpenAI) completions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	var req struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "no messages", http.StatusBadRequest)
		return
	}

	reply := f.reply(req.Messages[len(req.Messages)-1].Content)
	usage := map[string]int{"prompt_tokens": 12, "completion_tokens": len(strings.Fields(reply))}

	if !req.Stream {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   req.Model,
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
			"usage":   usage,
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	for _, word := range strings.SplitAfter(reply, " ") {
		chunk, _ := json.Marshal(map[string]any{
			"model":   req.Model,
			"choices": []map[string]any{{"delta": map[string]string{"content": word}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
	}
	final, _ := json.Marshal(map[string]any{"model": req.Model, "choices": []any{}, "usage": usage})
	fmt.Fprintf(w, "data: %s\n\ndata: [DONE]\n\n", final)
}
