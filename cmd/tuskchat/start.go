package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the TuskChat services",
	Long:  `Starts the HTTP API, the Telegram bot when enabled, and the background memory and knowledge workers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting tuskchat")

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}

		services, err := app.Services(ctx)
		if err != nil {
			app.Close(ctx)
			return err
		}

		srv.StartServices(ctx, services)

		// Wait for shutdown signal
		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("tuskchat has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
