package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sandevgo/tuskchat/internal/core"
)

const chatCompletionsPath = "/v1/chat/completions"

// OpenAICompatible is an adapter for any backend speaking the OpenAI chat
// completions API.
type OpenAICompatible struct {
	baseProvider
	authHeader   string
	authPrefix   string
	extraHeaders map[string]string
	catalog      func(ctx context.Context) ([]core.Model, error)
}

type OpenAICompatibleConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // defaults to "Authorization"
	AuthPrefix   string // defaults to "Bearer "
	ExtraHeaders map[string]string
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	if cfg.AuthHeader == "" {
		cfg.AuthHeader, cfg.AuthPrefix = "Authorization", "Bearer "
	}
	o := &OpenAICompatible{
		baseProvider: newBaseProvider(strings.TrimSuffix(cfg.BaseURL, "/"), cfg.APIKey, cfg.Model),
		authHeader:   cfg.AuthHeader,
		authPrefix:   cfg.AuthPrefix,
		extraHeaders: cfg.ExtraHeaders,
	}
	o.catalog = o.listModels
	return o
}

// Models lists the backend catalogue.
func (o *OpenAICompatible) Models(ctx context.Context) ([]core.Model, error) {
	return o.catalog(ctx)
}

type chatPayload struct {
	Model         string         `json:"model"`
	Messages      []core.Message `json:"messages"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (o *OpenAICompatible) Chat(ctx context.Context, req core.ChatRequest) (core.ChatResponse, error) {
	payload := o.payload(req)

	resp, err := o.doRequest(ctx, http.MethodPost, chatCompletionsPath, payload, o.headers())
	if err != nil {
		return core.ChatResponse{}, err
	}
	defer resp.Body.Close()

	return parseOpenAIResponse(resp, payload.Model)
}

// Stream reads the server-sent event stream and reports every content delta.
func (o *OpenAICompatible) Stream(ctx context.Context, req core.ChatRequest, onDelta core.DeltaFunc) (core.ChatResponse, error) {
	payload := o.payload(req)
	payload.Stream = true
	payload.StreamOptions = &streamOptions{IncludeUsage: true}

	headers := o.headers()
	headers["Accept"] = "text/event-stream"

	resp, err := o.doRequest(ctx, http.MethodPost, chatCompletionsPath, payload, headers)
	if err != nil {
		return core.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.ChatResponse{}, statusError(resp)
	}

	out := core.ChatResponse{Model: payload.Model}
	var content strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Model   string `json:"model"`
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
			Usage *openAIUsage `json:"usage"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return core.ChatResponse{}, fmt.Errorf("decode chunk: %w", err)
		}
		if chunk.Error != nil {
			return core.ChatResponse{}, fmt.Errorf("stream error: %s", chunk.Error.Message)
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Usage != nil {
			out.InputTokens = chunk.Usage.PromptTokens
			out.OutputTokens = chunk.Usage.CompletionTokens
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			content.WriteString(choice.Delta.Content)
			if err := onDelta(choice.Delta.Content); err != nil {
				return core.ChatResponse{}, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return core.ChatResponse{}, fmt.Errorf("read stream: %w", err)
	}

	out.Content = content.String()
	return out, nil
}

func (o *OpenAICompatible) payload(req core.ChatRequest) chatPayload {
	messages := make([]core.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	return chatPayload{
		Model:     o.pick(req.Model),
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
}

func (o *OpenAICompatible) headers() map[string]string {
	headers := make(map[string]string)
	if o.authHeader != "" && o.apiKey != "" {
		headers[o.authHeader] = o.authPrefix + o.apiKey
	}
	for k, v := range o.extraHeaders {
		headers[k] = v
	}
	return headers
}

// listModels fetches the OpenAI-style /v1/models catalogue.
func (o *OpenAICompatible) listModels(ctx context.Context) ([]core.Model, error) {
	resp, err := o.doRequest(ctx, http.MethodGet, "/v1/models", nil, o.headers())
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var apiResp struct {
		Data []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			ContextLength int    `json:"context_length"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]core.Model, 0, len(apiResp.Data))
	for _, m := range apiResp.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, core.Model{ID: m.ID, Name: name, ContextLength: m.ContextLength})
	}
	return models, nil
}

func parseOpenAIResponse(resp *http.Response, model string) (core.ChatResponse, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ChatResponse{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return core.ChatResponse{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Model   string `json:"model"`
		Choices []struct {
			Message core.Message `json:"message"`
		} `json:"choices"`
		Usage openAIUsage `json:"usage"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.ChatResponse{}, fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return core.ChatResponse{}, fmt.Errorf("empty choices: %s", string(data))
	}
	if result.Model != "" {
		model = result.Model
	}

	return core.ChatResponse{
		Content:      result.Choices[0].Message.Content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		Model:        model,
	}, nil
}
