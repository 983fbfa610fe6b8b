package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskchat/internal/core"
)

type HelpCommand struct {
	router    core.CmdRouter
	formatter *ResponseFormatter
}

func NewHelpCommand(router core.CmdRouter) *HelpCommand {
	return &HelpCommand{
		router:    router,
		formatter: NewResponseFormatter(),
	}
}

func (c *HelpCommand) Name() string {
	return "help"
}

func (c *HelpCommand) Description() string {
	return "Show available commands"
}

func (c *HelpCommand) Execute(ctx context.Context, sess *core.Session, args []string) (string, error) {
	cmds := c.router.ListCommands()
	items := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		items = append(items, fmt.Sprintf("/%s  %s", cmd.Name(), cmd.Description()))
	}
	return c.formatter.Combine(
		c.formatter.Info("Commands"),
		c.formatter.List(items),
		c.formatter.Tip("Anything else is sent to the assistant"),
	), nil
}
