package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/memory"
)

const (
	recallLimit    = 5
	maxTitleRunes  = 40
	previewRunes   = 160
	rememberSyntax = "/remember [title |] text"
)

type RememberCommand struct {
	items     Memories
	formatter *ResponseFormatter
}

func NewRememberCommand(items Memories) *RememberCommand {
	return &RememberCommand{
		items:     items,
		formatter: NewResponseFormatter(),
	}
}

func (c *RememberCommand) Name() string {
	return "remember"
}

func (c *RememberCommand) Description() string {
	return "Save a note to your memory"
}

func (c *RememberCommand) Execute(ctx context.Context, sess *core.Session, args []string) (string, error) {
	title, content := splitNote(strings.Join(args, " "))
	if content == "" {
		return c.formatter.Combine(
			c.formatter.Info("Remember"),
			c.formatter.Usage(rememberSyntax),
			c.formatter.Examples([]string{
				"/remember Passport | expires in March 2027",
				"/remember I prefer answers with code samples",
			}),
		), nil
	}

	item, err := c.items.Create(ctx, sess.Subject, memory.CreateItem{
		Title:       title,
		Content:     content,
		ContentType: memory.DefaultContentType,
	})
	if err != nil {
		return "", err
	}
	return c.formatter.Success(fmt.Sprintf("Remembered: %s", item.Title)), nil
}

// splitNote parses "title | text". Without a separator the title is the
// beginning of the text.
func splitNote(input string) (string, string) {
	if title, content, ok := strings.Cut(input, "|"); ok {
		title, content = strings.TrimSpace(title), strings.TrimSpace(content)
		if title != "" {
			return title, content
		}
		input = content
	}

	content := strings.TrimSpace(input)
	title := content
	if r := []rune(title); len(r) > maxTitleRunes {
		title = strings.TrimSpace(string(r[:maxTitleRunes])) + "…"
	}
	return title, content
}

type RecallCommand struct {
	items     Memories
	formatter *ResponseFormatter
}

func NewRecallCommand(items Memories) *RecallCommand {
	return &RecallCommand{
		items:     items,
		formatter: NewResponseFormatter(),
	}
}

func (c *RecallCommand) Name() string {
	return "recall"
}

func (c *RecallCommand) Description() string {
	return "Search your saved notes"
}

func (c *RecallCommand) Execute(ctx context.Context, sess *core.Session, args []string) (string, error) {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return c.formatter.Combine(
			c.formatter.Info("Recall"),
			c.formatter.Usage("/recall query"),
		), nil
	}

	found, err := c.items.Search(ctx, sess.Subject, query, recallLimit, "")
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Recall"),
			c.formatter.Tip(fmt.Sprintf("Nothing found for %q", query)),
		), nil
	}

	sections := []string{c.formatter.Info("Recall")}
	for _, item := range found {
		title := item.Title
		if item.Pinned {
			title = "📌 " + title
		}
		sections = append(sections, c.formatter.Entry(title, item.Content, previewRunes))
	}
	return c.formatter.Combine(sections...), nil
}
