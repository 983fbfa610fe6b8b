package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const defaultRuntimeDir = ".tuskchat"

func GetRuntimePath() string {
	return resolveRuntimePath(os.Getenv("TUSK_RUNTIME_PATH"))
}

func resolveRuntimePath(path string) string {
	if path == "" {
		path = defaultRuntimeDir
	}
	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}

// LoadEnvFile loads <runtime>/.env into the process environment.
// A missing file is not an error. Variables already set win.
func LoadEnvFile(ctx context.Context, runtimePath string) error {
	envFile := filepath.Join(runtimePath, ".env")
	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		return err
	}
	log.FromCtx(ctx).Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}

// Load parses T from the environment.
func Load[T any]() (*T, error) {
	c, err := env.ParseAs[T]()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Defaults returns T with only its envDefault values applied.
func Defaults[T any]() T {
	c, _ := env.ParseAsWithOptions[T](env.Options{Environment: map[string]string{}})
	return c
}

func mustLoad[T any](ctx context.Context, name string) *T {
	c, err := Load[T]()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msgf("failed to parse %s config", name)
	}
	return c
}
