package srv

import (
	"context"

	"github.com/sandevgo/tuskchat/pkg/log"
)

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

func StartServices(ctx context.Context, services []Service) {
	logger := log.FromCtx(ctx)
	for _, service := range services {
		go func(service Service) {
			if err := service.Start(ctx); err != nil {
				logger.Fatal().Err(err).Msgf("%T failed to start", service)
			}
		}(service)
	}
}

func ShutdownServices(ctx context.Context, services []Service) {
	<-ctx.Done()
	// the parent context is gone, give shutdown hooks a fresh one
	shutdownCtx := context.WithoutCancel(ctx)
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(shutdownCtx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%T failed to shutdown", services[i])
		}
	}
}
