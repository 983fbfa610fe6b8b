package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskchat/internal/core"
)

const knowledgeListLimit = 10

type KnowledgeCommand struct {
	kb        Knowledge
	formatter *ResponseFormatter
}

func NewKnowledgeCommand(kb Knowledge) *KnowledgeCommand {
	return &KnowledgeCommand{
		kb:        kb,
		formatter: NewResponseFormatter(),
	}
}

func (c *KnowledgeCommand) Name() string {
	return "knowledge"
}

func (c *KnowledgeCommand) Description() string {
	return "List knowledge topics or show one topic"
}

func (c *KnowledgeCommand) Execute(ctx context.Context, sess *core.Session, args []string) (string, error) {
	topic := strings.TrimSpace(strings.Join(args, " "))
	entries, err := c.kb.Query(ctx, topic, knowledgeListLimit)
	if err != nil {
		return "", err
	}

	if len(entries) == 0 {
		tip := "The knowledge base is empty"
		if topic != "" {
			tip = fmt.Sprintf("No knowledge on %q yet", topic)
		}
		return c.formatter.Combine(c.formatter.Info("Knowledge"), c.formatter.Tip(tip)), nil
	}

	if topic == "" {
		items := make([]string, 0, len(entries))
		for _, e := range entries {
			items = append(items, fmt.Sprintf("**%s** (v%d, confidence %.2f)", e.Topic, e.Version, e.ConfidenceScore))
		}
		return c.formatter.Combine(
			c.formatter.Info("Knowledge"),
			c.formatter.List(items),
			c.formatter.Usage("/knowledge topic"),
		), nil
	}

	e := entries[0]
	sections := []string{
		c.formatter.Info("Knowledge: " + e.Topic),
		c.formatter.Label("Confidence", fmt.Sprintf("%.2f", e.ConfidenceScore)),
		c.formatter.Label("Sources", fmt.Sprint(len(e.SourceMaterials))),
	}
	for _, in := range e.KnowledgeData.Insights {
		sections = append(sections, c.formatter.Entry(in.AddedAt.Format("2006-01-02"), in.Insights, 0))
	}
	if len(e.KnowledgeData.Patterns) > 0 {
		sections = append(sections, "**Patterns**:\n"+c.formatter.List(e.KnowledgeData.Patterns))
	}
	return c.formatter.Combine(sections...), nil
}
