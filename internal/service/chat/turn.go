package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/pkg/retry"
	"github.com/sandevgo/tuskchat/pkg/tokenizer"
)

const knowledgeLimit = 3

type SendInput struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	// Provider and Model override the conversation settings for one turn.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

type TurnResult struct {
	UserMessage      core.StoredMessage `json:"userMessage"`
	AssistantMessage core.StoredMessage `json:"assistantMessage"`
	TokensUsed       int                `json:"tokensUsed"`
	CostUSD          float64            `json:"costUsd"`
}

// Send runs one blocking turn. Turns on the same conversation are
// serialized.
func (o *Orchestrator) Send(ctx context.Context, subject core.Subject, in SendInput) (TurnResult, error) {
	return o.turn(ctx, subject, in, nil)
}

// Stream runs one turn and reports deltas through onEvent. The assistant
// message is stored only after the stream completed. A failed or cancelled
// stream stores the user message marked as failed.
func (o *Orchestrator) Stream(ctx context.Context, subject core.Subject, in SendInput, onEvent func(core.StreamEvent) error) (TurnResult, error) {
	if onEvent == nil {
		onEvent = func(core.StreamEvent) error { return nil }
	}

	res, err := o.turn(ctx, subject, in, func(delta string) error {
		return onEvent(core.StreamEvent{Type: core.StreamContent, Delta: delta})
	})
	if err != nil {
		if ctx.Err() == nil {
			_ = onEvent(core.StreamEvent{Type: core.StreamError, Error: err.Error()})
		}
		return TurnResult{}, err
	}

	_ = onEvent(core.StreamEvent{
		Type:               core.StreamDone,
		TokensUsed:         res.TokensUsed,
		CostUSD:            res.CostUSD,
		UserMessageID:      res.UserMessage.ID,
		AssistantMessageID: res.AssistantMessage.ID,
	})
	return res, nil
}

func (o *Orchestrator) turn(ctx context.Context, subject core.Subject, in SendInput, onDelta core.DeltaFunc) (TurnResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return TurnResult{}, fmt.Errorf("%w: empty message", core.ErrInvalidInput)
	}

	unlock, err := o.locks.Lock(ctx, in.ConversationID)
	if err != nil {
		return TurnResult{}, err
	}
	defer unlock()

	conv, err := o.Get(ctx, subject, in.ConversationID)
	if err != nil {
		return TurnResult{}, err
	}
	if conv.Archived {
		return TurnResult{}, core.ErrConversationArchived
	}

	provider, model := conv.Provider, conv.Model
	if in.Provider != "" {
		provider, model = in.Provider, in.Model
	} else if in.Model != "" {
		model = in.Model
	}
	if err := o.checkProvider(provider); err != nil {
		return TurnResult{}, err
	}

	logger := log.FromCtx(ctx).With().
		Str("conversation_id", conv.ID).
		Str("provider", provider).
		Str("model", model).
		Logger()
	ctx = logger.WithContext(ctx)

	req, err := o.buildRequest(ctx, conv, content, provider, model)
	if err != nil {
		return TurnResult{}, err
	}

	user := &core.StoredMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		OwnerID:        conv.OwnerID,
		Role:           core.RoleUser,
		Content:        content,
		TokensUsed:     tokenizer.Count(content),
	}

	start := time.Now()
	resp, err := o.complete(ctx, provider, req, onDelta)
	if err != nil {
		o.storeFailed(ctx, user, err)
		return TurnResult{}, err
	}

	if onDelta == nil && o.cfg.EnhanceResponses && o.deps.Knowledge != nil {
		resp.Content = o.deps.Knowledge.EnhanceResponse(ctx, content, resp.Content)
	}

	assistant := &core.StoredMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		OwnerID:        conv.OwnerID,
		Role:           core.RoleAssistant,
		Content:        resp.Content,
		TokensUsed:     resp.OutputTokens,
		Metadata: map[string]any{
			"provider":      resp.Provider,
			"model":         resp.Model,
			"input_tokens":  resp.InputTokens,
			"output_tokens": resp.OutputTokens,
			"cost_usd":      resp.CostUSD,
		},
	}

	// The turn is persisted even if the caller went away after the
	// provider answered.
	persistCtx := context.WithoutCancel(ctx)
	if err := o.deps.Messages.AppendTurn(persistCtx, user, assistant); err != nil {
		return TurnResult{}, fmt.Errorf("failed to store turn: %w", err)
	}

	if conv.Title == "" {
		conv.Title = titleFrom(content)
		if err := o.deps.Conversations.UpdateConversation(persistCtx, conv); err != nil {
			logger.Warn().Err(err).Msg("failed to set conversation title")
		}
	}

	logger.Info().
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Float64("cost_usd", resp.CostUSD).
		Dur("elapsed", time.Since(start)).
		Msg("turn completed")

	return TurnResult{
		UserMessage:      *user,
		AssistantMessage: *assistant,
		TokensUsed:       resp.InputTokens + resp.OutputTokens,
		CostUSD:          resp.CostUSD,
	}, nil
}

// buildRequest assembles the system prompt, the augmentation blocks and the
// compressed history for one turn.
func (o *Orchestrator) buildRequest(ctx context.Context, conv core.Conversation, content, provider, model string) (core.ChatRequest, error) {
	logger := log.FromCtx(ctx)

	stored, err := o.deps.Messages.ListContextMessages(ctx, conv.ID, o.cfg.ContextWindowSize)
	if err != nil {
		return core.ChatRequest{}, fmt.Errorf("failed to load history: %w", err)
	}
	history := make([]core.Message, 0, len(stored)+1)
	for _, m := range stored {
		history = append(history, m.AsMessage())
	}
	history = append(history, core.Message{Role: core.RoleUser, Content: content})

	var blocks []string
	rag, err := o.deps.Memory.RagQuery(ctx, content, conv.OwnerID, conv.ID)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("memory lookup failed, continuing without it")
	case rag.Context != "":
		blocks = append(blocks, rag.Context)
	}

	if o.deps.Knowledge != nil {
		kb, err := o.deps.Knowledge.RelevantContext(ctx, content, knowledgeLimit)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("knowledge lookup failed, continuing without it")
		case kb != "":
			blocks = append(blocks, kb)
		}
	}

	budget := o.historyBudget(blocks)
	history = o.deps.Compressor.For(provider, model).Compress(ctx, history, budget)

	return core.ChatRequest{
		Model:        model,
		Messages:     history,
		SystemPrompt: o.deps.Prompts.Build(conv.Mode, blocks...),
		MaxTokens:    o.cfg.MaxOutputTokens,
	}, nil
}

// historyBudget is the character budget left for history once the
// augmentation blocks are accounted for. It never drops below half of the
// configured budget.
func (o *Orchestrator) historyBudget(blocks []string) int {
	total := o.cfg.ContextBudgetChars
	budget := total
	for _, b := range blocks {
		budget -= len([]rune(b))
	}
	return max(budget, total/2)
}

func (o *Orchestrator) complete(ctx context.Context, provider string, req core.ChatRequest, onDelta core.DeltaFunc) (core.ChatResponse, error) {
	if onDelta != nil {
		return o.deps.Gateway.Stream(ctx, provider, req, onDelta)
	}

	var resp core.ChatResponse
	retrier := retry.NewRetrier(retry.NewOnlyConfig(o.cfg.ProviderRetries, core.ErrProviderRequestFailed))
	err := retrier.Do(ctx, func() error {
		var err error
		resp, err = o.deps.Gateway.Chat(ctx, provider, req)
		if err != nil && errors.Is(err, core.ErrProviderRequestFailed) {
			log.FromCtx(ctx).Debug().Err(err).Msg("provider request failed")
		}
		return err
	})
	return resp, err
}

func (o *Orchestrator) storeFailed(ctx context.Context, user *core.StoredMessage, cause error) {
	user.Metadata = map[string]any{
		"status": core.TurnStatusFailed,
		"error":  cause.Error(),
	}
	if err := o.deps.Messages.AppendFailedTurn(context.WithoutCancel(ctx), user); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to store failed turn")
		return
	}
	log.FromCtx(ctx).Warn().Err(cause).Str("message_id", user.ID).Msg("turn failed")
}
