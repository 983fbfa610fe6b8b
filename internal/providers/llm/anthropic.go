package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sandevgo/tuskchat/internal/core"
)

const defaultAnthropicMaxTokens = 1024

type Anthropic struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *Anthropic {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// The gateway reports failures as-is; retry policy lives with the caller.
		option.WithMaxRetries(0),
	}
	return &Anthropic{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  model,
	}
}

func (a *Anthropic) Chat(ctx context.Context, req core.ChatRequest) (core.ChatResponse, error) {
	params := a.params(req)

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return core.ChatResponse{}, fmt.Errorf("claude api error: %w", err)
	}
	return anthropicResponse(resp, string(params.Model)), nil
}

func (a *Anthropic) Stream(ctx context.Context, req core.ChatRequest, onDelta core.DeltaFunc) (core.ChatResponse, error) {
	params := a.params(req)

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return core.ChatResponse{}, fmt.Errorf("accumulate stream: %w", err)
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if err := onDelta(delta.Text); err != nil {
					return core.ChatResponse{}, err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return core.ChatResponse{}, fmt.Errorf("claude stream error: %w", err)
	}

	return anthropicResponse(&message, string(params.Model)), nil
}

// params folds system-role turns into the system prompt; the Messages API
// only accepts user and assistant roles.
func (a *Anthropic) params(req core.ChatRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	system, turns := splitSystem(req)
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func anthropicResponse(msg *anthropic.Message, model string) core.ChatResponse {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if msg.Model != "" {
		model = string(msg.Model)
	}
	return core.ChatResponse{
		Content:      sb.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		Model:        model,
	}
}

// splitSystem merges the system prompt with any system-role messages and
// returns the remaining conversational turns.
func splitSystem(req core.ChatRequest) (string, []core.Message) {
	parts := make([]string, 0, 2)
	if req.SystemPrompt != "" {
		parts = append(parts, req.SystemPrompt)
	}
	turns := make([]core.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == core.RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(parts, "\n\n"), turns
}
