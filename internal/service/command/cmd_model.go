package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/providers/llm"
)

const maxListedModels = 15

type ModelCommand struct {
	convs     Conversations
	models    ModelCatalog
	formatter *ResponseFormatter
}

func NewModelCommand(convs Conversations, models ModelCatalog) *ModelCommand {
	return &ModelCommand{
		convs:     convs,
		models:    models,
		formatter: NewResponseFormatter(),
	}
}

func (c *ModelCommand) Name() string {
	return "model"
}

func (c *ModelCommand) Description() string {
	return "Show or change the model of the current conversation"
}

func (c *ModelCommand) Execute(ctx context.Context, sess *core.Session, args []string) (string, error) {
	conv, err := c.convs.Ensure(ctx, sess)
	if err != nil {
		return "", err
	}

	switch {
	case len(args) == 0:
		return c.current(conv), nil
	case args[0] == "list":
		provider := conv.Provider
		if len(args) > 1 {
			provider = args[1]
		}
		return c.list(ctx, provider)
	}

	provider, model, err := llm.ParseModelRef(args[0], c.models.Providers())
	if err != nil {
		return "", err
	}
	if provider == "" {
		provider = conv.Provider
	}

	conv, err = c.convs.SetModel(ctx, sess.Subject, conv.ID, provider, model)
	if err != nil {
		return "", fmt.Errorf("failed to set model: %w", err)
	}
	return c.formatter.Combine(
		c.formatter.Success(fmt.Sprintf("Model changed to: `%s`", c.ref(conv.Provider, conv.Model))),
	), nil
}

func (c *ModelCommand) current(conv core.Conversation) string {
	return c.formatter.Combine(
		c.formatter.Info("Current Model"),
		c.formatter.Label("Provider", c.resolveProvider(conv.Provider)),
		c.formatter.Label("Model", c.ref(conv.Provider, conv.Model)),
		c.formatter.Label("Available", fmt.Sprint(c.models.Providers())),
		c.formatter.Usage("/model [provider]/[model]\n/model list [provider]"),
		c.formatter.Examples([]string{
			"/model anthropic/claude-sonnet-4-5",
			"/model openrouter/openai/gpt-4o-mini",
			"/model ollama",
		}),
	)
}

func (c *ModelCommand) list(ctx context.Context, provider string) (string, error) {
	provider = c.resolveProvider(provider)
	models, err := c.models.Models(ctx, provider)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Models"),
			c.formatter.Tip(fmt.Sprintf("%s does not publish a model list", provider)),
		), nil
	}

	items := make([]string, 0, min(len(models), maxListedModels))
	for _, m := range models[:min(len(models), maxListedModels)] {
		items = append(items, fmt.Sprintf("`%s/%s`", provider, m.ID))
	}
	return c.formatter.Combine(
		c.formatter.Info("Models"),
		c.formatter.Label("Provider", provider),
		c.formatter.Label("Total", fmt.Sprint(len(models))),
		c.formatter.List(items),
	), nil
}

func (c *ModelCommand) resolveProvider(provider string) string {
	if provider == "" {
		return c.models.DefaultProvider()
	}
	return provider
}

func (c *ModelCommand) ref(provider, model string) string {
	provider = c.resolveProvider(provider)
	if model == "" {
		model = c.models.DefaultModel(provider)
	}
	return provider + "/" + model
}
