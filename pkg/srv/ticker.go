package srv

import (
	"context"
	"sync"
	"time"

	"github.com/sandevgo/tuskchat/pkg/log"
)

// Ticker runs tick every interval until shutdown. Tick errors are logged
// and never stop the loop.
type Ticker struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTicker(name string, interval time.Duration, tick func(ctx context.Context) error) *Ticker {
	return &Ticker{name: name, interval: interval, tick: tick}
}

func (t *Ticker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	logger := log.FromCtx(ctx).With().Str("component", t.name).Logger()
	logger.Info().Dur("interval", t.interval).Msg("worker started")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopped")
			return nil
		case <-ticker.C:
			if err := t.tick(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("worker tick failed")
			}
		}
	}
}

func (t *Ticker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
