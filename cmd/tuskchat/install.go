package main

import (
	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/sandevgo/tuskchat/internal/service/installer"
	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:           "install",
	Short:         "Write the TuskChat configuration",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting installation process")

		// run wizard (includes save step)
		if _, err := installer.RunWizard(); err != nil {
			return err
		}

		runtimePath := config.GetRuntimePath()
		if err := config.LoadEnvFile(ctx, runtimePath); err != nil {
			logger.Warn().Err(err).Str("path", runtimePath).Msg("failed to load .env file")
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Installation complete! You can now run 'tuskchat start'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
