package main

import (
	"github.com/sandevgo/tuskchat/internal/transport/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:          "chat",
	Short:        "Chat in the terminal",
	Long:         `Opens an interactive session as the local owner. Answers are streamed; slash commands work as in Telegram.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		repl, err := cli.NewReadLine(app.Config.GetRuntimePath(), app.Chat, app.Router, app.LocalSubject())
		if err != nil {
			return err
		}
		defer repl.Shutdown(ctx)

		return repl.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
