package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/chat"
)

type NewCommand struct {
	convs     Conversations
	formatter *ResponseFormatter
}

func NewNewCommand(convs Conversations) *NewCommand {
	return &NewCommand{
		convs:     convs,
		formatter: NewResponseFormatter(),
	}
}

func (c *NewCommand) Name() string {
	return "new"
}

func (c *NewCommand) Description() string {
	return "Start a new conversation, optionally in a mode"
}

func (c *NewCommand) Execute(ctx context.Context, sess *core.Session, args []string) (string, error) {
	in := chat.CreateInput{}
	if len(args) > 0 {
		in.Mode = args[0]
	}

	conv, err := c.convs.Create(ctx, sess.Subject, in)
	if err != nil {
		return "", err
	}
	sess.ConversationID = conv.ID

	return c.formatter.Combine(
		c.formatter.Success("New conversation started"),
		c.formatter.Label("Mode", conv.Mode),
	), nil
}

type ArchiveCommand struct {
	convs     Conversations
	formatter *ResponseFormatter
}

func NewArchiveCommand(convs Conversations) *ArchiveCommand {
	return &ArchiveCommand{
		convs:     convs,
		formatter: NewResponseFormatter(),
	}
}

func (c *ArchiveCommand) Name() string {
	return "archive"
}

func (c *ArchiveCommand) Description() string {
	return "Archive the current conversation"
}

func (c *ArchiveCommand) Execute(ctx context.Context, sess *core.Session, args []string) (string, error) {
	if sess.ConversationID == "" {
		return c.formatter.Combine(
			c.formatter.Info("Archive"),
			c.formatter.Tip("There is no active conversation yet"),
		), nil
	}

	conv, err := c.convs.Archive(ctx, sess.Subject, sess.ConversationID)
	if err != nil {
		return "", err
	}
	sess.ConversationID = ""

	title := conv.Title
	if title == "" {
		title = "untitled"
	}
	return c.formatter.Success(fmt.Sprintf("Archived: %s", title)), nil
}
