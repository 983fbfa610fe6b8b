// Package chat owns the conversation lifecycle and the message-send
// protocol.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/compress"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const (
	DefaultMode   = "general"
	maxTitleRunes = 60
)

// Gateway is the provider gateway as seen by the orchestrator.
type Gateway interface {
	core.Completer
	Providers() []string
}

type PromptBuilder interface {
	Build(mode string, blocks ...string) string
	HasMode(mode string) bool
}

type Deps struct {
	Conversations core.ConversationRepository
	Messages      core.MessagesRepository
	Gateway       Gateway
	Memory        core.MemoryStore
	// Knowledge is optional.
	Knowledge  core.KnowledgeSource
	Prompts    PromptBuilder
	Compressor *compress.Compressor
	Authz      core.Authorizer
}

type Orchestrator struct {
	cfg   *config.AppConfig
	deps  Deps
	locks *keyedLocks
}

func NewOrchestrator(cfg *config.AppConfig, deps Deps) *Orchestrator {
	if deps.Compressor == nil {
		deps.Compressor = compress.New(deps.Gateway)
	}
	return &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		locks: newKeyedLocks(),
	}
}

type CreateInput struct {
	Title    string `json:"title"`
	Mode     string `json:"mode"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (o *Orchestrator) Create(ctx context.Context, subject core.Subject, in CreateInput) (core.Conversation, error) {
	if subject.ID == "" {
		return core.Conversation{}, fmt.Errorf("%w: missing subject", core.ErrInvalidInput)
	}

	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = DefaultMode
	}
	if !o.deps.Prompts.HasMode(mode) {
		return core.Conversation{}, fmt.Errorf("%w: unknown mode %q", core.ErrInvalidInput, mode)
	}
	if err := o.checkProvider(in.Provider); err != nil {
		return core.Conversation{}, err
	}

	now := time.Now().UTC()
	conv := core.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   subject.ID,
		Title:     strings.TrimSpace(in.Title),
		Mode:      mode,
		Provider:  in.Provider,
		Model:     in.Model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.deps.Conversations.CreateConversation(ctx, conv); err != nil {
		return core.Conversation{}, err
	}

	log.FromCtx(ctx).Info().
		Str("conversation_id", conv.ID).
		Str("owner", conv.OwnerID).
		Str("mode", conv.Mode).
		Msg("conversation created")
	return conv, nil
}

func (o *Orchestrator) Get(ctx context.Context, subject core.Subject, id string) (core.Conversation, error) {
	conv, err := o.deps.Conversations.GetConversation(ctx, id)
	if err != nil {
		return core.Conversation{}, err
	}
	if err := o.deps.Authz.Authorize(ctx, subject, core.ActionConversationAccess, map[string]any{
		"id":       conv.ID,
		"owner_id": conv.OwnerID,
	}); err != nil {
		return core.Conversation{}, err
	}
	return conv, nil
}

// Ensure returns the active conversation of a chat session, starting a new
// one when the session has none or its conversation is gone or archived.
func (o *Orchestrator) Ensure(ctx context.Context, sess *core.Session) (core.Conversation, error) {
	if sess.ConversationID != "" {
		conv, err := o.Get(ctx, sess.Subject, sess.ConversationID)
		switch {
		case err == nil && !conv.Archived:
			return conv, nil
		case err != nil && !errors.Is(err, core.ErrConversationNotFound):
			return core.Conversation{}, err
		}
	}

	conv, err := o.Create(ctx, sess.Subject, CreateInput{})
	if err != nil {
		return core.Conversation{}, err
	}
	sess.ConversationID = conv.ID
	return conv, nil
}

func (o *Orchestrator) List(ctx context.Context, subject core.Subject, includeArchived bool) ([]core.Conversation, error) {
	return o.deps.Conversations.ListConversations(ctx, subject.ID, includeArchived)
}

func (o *Orchestrator) Rename(ctx context.Context, subject core.Subject, id, title string) (core.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return core.Conversation{}, fmt.Errorf("%w: empty title", core.ErrInvalidInput)
	}
	return o.update(ctx, subject, id, func(c *core.Conversation) error {
		c.Title = title
		return nil
	})
}

func (o *Orchestrator) Archive(ctx context.Context, subject core.Subject, id string) (core.Conversation, error) {
	return o.update(ctx, subject, id, func(c *core.Conversation) error {
		c.Archived = true
		return nil
	})
}

func (o *Orchestrator) SetMode(ctx context.Context, subject core.Subject, id, mode string) (core.Conversation, error) {
	if !o.deps.Prompts.HasMode(mode) {
		return core.Conversation{}, fmt.Errorf("%w: unknown mode %q", core.ErrInvalidInput, mode)
	}
	return o.update(ctx, subject, id, func(c *core.Conversation) error {
		c.Mode = mode
		return nil
	})
}

// SetModel pins the backend of a conversation. Empty values fall back to
// the gateway defaults.
func (o *Orchestrator) SetModel(ctx context.Context, subject core.Subject, id, provider, model string) (core.Conversation, error) {
	if err := o.checkProvider(provider); err != nil {
		return core.Conversation{}, err
	}
	return o.update(ctx, subject, id, func(c *core.Conversation) error {
		c.Provider = provider
		c.Model = model
		return nil
	})
}

// Delete removes the conversation with its messages and the memory records
// derived from it.
func (o *Orchestrator) Delete(ctx context.Context, subject core.Subject, id string) error {
	unlock, err := o.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := o.Get(ctx, subject, id); err != nil {
		return err
	}
	if err := o.deps.Conversations.DeleteConversation(ctx, id); err != nil {
		return err
	}

	if err := o.deps.Memory.DeleteWhere(ctx, core.Filter{core.MetaConversation: id}); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("conversation_id", id).Msg("failed to drop conversation memory")
	}

	log.FromCtx(ctx).Info().Str("conversation_id", id).Msg("conversation deleted")
	return nil
}

// Messages returns the newest limit messages in conversation order. A
// non-positive limit returns all of them.
func (o *Orchestrator) Messages(ctx context.Context, subject core.Subject, id string, limit int) ([]core.StoredMessage, error) {
	if _, err := o.Get(ctx, subject, id); err != nil {
		return nil, err
	}
	return o.deps.Messages.ListMessages(ctx, id, limit)
}

func (o *Orchestrator) update(ctx context.Context, subject core.Subject, id string, apply func(*core.Conversation) error) (core.Conversation, error) {
	unlock, err := o.locks.Lock(ctx, id)
	if err != nil {
		return core.Conversation{}, err
	}
	defer unlock()

	conv, err := o.Get(ctx, subject, id)
	if err != nil {
		return core.Conversation{}, err
	}
	if err := apply(&conv); err != nil {
		return core.Conversation{}, err
	}
	if err := o.deps.Conversations.UpdateConversation(ctx, conv); err != nil {
		return core.Conversation{}, err
	}
	return o.deps.Conversations.GetConversation(ctx, id)
}

func (o *Orchestrator) checkProvider(provider string) error {
	if provider == "" || slices.Contains(o.deps.Gateway.Providers(), provider) {
		return nil
	}
	return fmt.Errorf("%w: %s", core.ErrProviderUnavailable, provider)
}

func titleFrom(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if r := []rune(title); len(r) > maxTitleRunes {
		title = strings.TrimSpace(string(r[:maxTitleRunes])) + "…"
	}
	return title
}
