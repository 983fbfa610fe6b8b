package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sandevgo/tuskchat/internal/core"
)

const (
	openAIBaseURL     = "https://api.openai.com"
	openRouterBaseURL = "https://openrouter.ai/api"
	ollamaBaseURL     = "http://localhost:11434"

	ollamaContextLength = 32768
)

func NewOpenAI(baseURL, apiKey, model string) *OpenAICompatible {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: baseURL, APIKey: apiKey, Model: model})
}

func NewOpenRouter(apiKey, model string) *OpenAICompatible {
	return newOpenRouterAt(openRouterBaseURL, apiKey, model)
}

func newOpenRouterAt(baseURL, apiKey, model string) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		ExtraHeaders: map[string]string{
			"HTTP-Referer": core.TuskRepositoryURL,
			"X-Title":      core.TuskName,
		},
	})
}

// NewCustomOpenAI targets a self-hosted server, e.g. vLLM or LM Studio.
func NewCustomOpenAI(baseURL, apiKey, model string) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: baseURL, APIKey: apiKey, Model: model})
}

// NewOllama chats through the OpenAI endpoint of an Ollama server but reads
// the installed models from its native tags API.
func NewOllama(baseURL, apiKey, model string) *OpenAICompatible {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	o := NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: baseURL, APIKey: apiKey, Model: model})
	o.catalog = func(ctx context.Context) ([]core.Model, error) {
		return ollamaTags(ctx, o)
	}
	return o
}

func ollamaTags(ctx context.Context, o *OpenAICompatible) ([]core.Model, error) {
	resp, err := o.doRequest(ctx, http.MethodGet, "/api/tags", nil, o.headers())
	if err != nil {
		return nil, fmt.Errorf("ollama not available: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var tags struct {
		Models []struct {
			Name    string `json:"name"`
			Details struct {
				ParameterSize string `json:"parameter_size"`
			} `json:"details"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode ollama tags: %w", err)
	}

	models := make([]core.Model, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if m.Details.ParameterSize != "" {
			name = fmt.Sprintf("%s (%s)", m.Name, m.Details.ParameterSize)
		}
		models = append(models, core.Model{ID: m.Name, Name: name, ContextLength: ollamaContextLength})
	}
	return models, nil
}
