package main

import (
	"os"
	"os/signal"

	"github.com/sandevgo/tuskchat/internal/transport/mcpserver"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:          "mcp",
	Short:        "Serve memory and knowledge tools over MCP stdio",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// stdout carries the protocol, logs stay on stderr
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		return mcpserver.New(app.LocalSubject(), app.Items, app.Knowledge).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
