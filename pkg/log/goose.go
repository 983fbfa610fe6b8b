package log

import (
	"context"

	"github.com/rs/zerolog"
)

// MigrationLogger satisfies goose.Logger. Migration chatter is logged at
// debug level; failures stay fatal as goose expects.
type MigrationLogger struct {
	logger zerolog.Logger
}

func NewMigrationLogger(ctx context.Context) *MigrationLogger {
	return &MigrationLogger{
		logger: FromCtx(ctx).With().Str("component", "migrations").Logger(),
	}
}

func (m *MigrationLogger) Fatalf(format string, v ...any) {
	m.logger.Fatal().Msgf(format, v...)
}

func (m *MigrationLogger) Printf(format string, v ...any) {
	m.logger.Debug().Msgf(format, v...)
}
