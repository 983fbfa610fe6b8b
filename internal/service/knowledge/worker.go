package knowledge

import (
	"context"
	"time"

	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/pkg/srv"
)

const defaultWorkerInterval = 30 * time.Second

// Worker picks up approved materials whose analysis failed or never ran.
type Worker struct {
	*srv.Ticker
	pipeline *Pipeline
}

func NewWorker(p *Pipeline, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = defaultWorkerInterval
	}
	w := &Worker{pipeline: p}
	w.Ticker = srv.NewTicker("knowledge_worker", interval, w.tick)
	return w
}

func (w *Worker) tick(ctx context.Context) error {
	n, err := w.pipeline.ProcessPending(ctx)
	if n > 0 {
		log.FromCtx(ctx).Info().Int("count", n).Msg("pending materials processed")
	}
	return err
}
