package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/sandevgo/tuskchat/pkg/log"
)

// DualEncoder encodes queries and passages into the same vector space.
type DualEncoder interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	EncodePassage(ctx context.Context, text string) ([]float32, error)
	Dims() int
	Shutdown() error
}

// Embedder bounds every model call by a timeout, pools chunked passages
// into a single vector and caches query vectors.
type Embedder struct {
	model     DualEncoder
	timeout   time.Duration
	chunkConf ChunkerConfig
	cache     *ristretto.Cache
}

type Option func(*Embedder)

func WithTimeout(d time.Duration) Option {
	return func(e *Embedder) { e.timeout = d }
}

func WithChunker(cfg ChunkerConfig) Option {
	return func(e *Embedder) { e.chunkConf = cfg }
}

// WithQueryCache keeps up to size query vectors in memory.
func WithQueryCache(size int64) Option {
	return func(e *Embedder) {
		if size <= 0 {
			return
		}
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        size * 10,
			MaxCost:            size,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err == nil {
			e.cache = cache
		}
	}
}

func NewEmbedder(model DualEncoder, opts ...Option) *Embedder {
	e := &Embedder{
		model:     model,
		timeout:   30 * time.Second,
		chunkConf: DefaultChunkerConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return v.([]float32), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.model.EncodeQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	if e.cache != nil {
		e.cache.Set(text, vec, 1)
	}
	return vec, nil
}

// EncodePassage embeds every chunk of text and mean-pools them.
// Empty text yields a nil vector.
func (e *Embedder) EncodePassage(ctx context.Context, text string) ([]float32, error) {
	chunks := ChunkText(text, e.chunkConf)
	if len(chunks) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var pooled []float32
	for i, chunk := range chunks {
		log.FromCtx(ctx).Debug().Int("chunk", i).Int("tokens", chunk.TokenSize).Msg("embedding chunk")

		vec, err := e.model.EncodePassage(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		if pooled == nil {
			pooled = make([]float32, len(vec))
		}
		if len(vec) != len(pooled) {
			return nil, fmt.Errorf("failed to embed chunk %d: dimension mismatch %d != %d", i, len(vec), len(pooled))
		}
		for j, v := range vec {
			pooled[j] += v
		}
	}

	if len(chunks) == 1 {
		return pooled, nil
	}
	return normalize(pooled), nil
}

func (e *Embedder) Dims() int {
	return e.model.Dims()
}

func (e *Embedder) Shutdown() error {
	if e.cache != nil {
		e.cache.Close()
	}
	return e.model.Shutdown()
}
