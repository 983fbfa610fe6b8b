package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/pkg/tokenizer"
)

const DefaultTimeout = 120 * time.Second

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	Models(ctx context.Context) ([]core.Model, error)
}

type backend struct {
	provider core.Provider
	model    string
}

// Gateway routes requests to the configured backends by key. It never
// retries; every call runs under its own deadline.
type Gateway struct {
	mu              sync.RWMutex
	backends        map[string]backend
	defaultProvider string
	timeout         time.Duration
}

func NewGateway(defaultProvider string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		backends:        make(map[string]backend),
		defaultProvider: defaultProvider,
		timeout:         timeout,
	}
}

// Register makes provider available under key. model is used when a
// request does not name one.
func (g *Gateway) Register(key string, provider core.Provider, model string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.backends[key] = backend{provider: provider, model: model}
}

// Providers lists the configured keys in sorted order.
func (g *Gateway) Providers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.backends))
	for k := range g.backends {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (g *Gateway) DefaultProvider() string {
	return g.defaultProvider
}

func (g *Gateway) DefaultModel(provider string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.backends[g.resolve(provider)].model
}

// Models lists the models of a backend that supports enumeration.
func (g *Gateway) Models(ctx context.Context, provider string) ([]core.Model, error) {
	key, b, err := g.lookup(provider)
	if err != nil {
		return nil, err
	}
	lister, ok := b.provider.(ModelLister)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot list models", core.ErrInvalidInput, key)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	models, err := lister.Models(callCtx)
	if err != nil {
		return nil, g.failure(ctx, key, err)
	}
	return models, nil
}

func (g *Gateway) Chat(ctx context.Context, provider string, req core.ChatRequest) (core.ChatResponse, error) {
	key, b, err := g.lookup(provider)
	if err != nil {
		return core.ChatResponse{}, err
	}
	if req.Model == "" {
		req.Model = b.model
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := b.provider.Chat(callCtx, req)
	if err != nil {
		return core.ChatResponse{}, g.failure(ctx, key, err)
	}

	resp = g.complete(key, req, resp)
	g.record(ctx, resp, time.Since(start), false)
	return resp, nil
}

// Stream forwards incremental text to onDelta. An error returned by onDelta
// aborts the upstream call and is returned unchanged.
func (g *Gateway) Stream(ctx context.Context, provider string, req core.ChatRequest, onDelta core.DeltaFunc) (core.ChatResponse, error) {
	key, b, err := g.lookup(provider)
	if err != nil {
		return core.ChatResponse{}, err
	}
	if req.Model == "" {
		req.Model = b.model
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var deltaErr error
	forward := func(delta string) error {
		if err := onDelta(delta); err != nil {
			deltaErr = err
			cancel()
			return err
		}
		return nil
	}

	start := time.Now()
	resp, err := b.provider.Stream(callCtx, req, forward)
	if deltaErr != nil {
		return core.ChatResponse{}, deltaErr
	}
	if err != nil {
		return core.ChatResponse{}, g.failure(ctx, key, err)
	}

	resp = g.complete(key, req, resp)
	g.record(ctx, resp, time.Since(start), true)
	return resp, nil
}

func (g *Gateway) resolve(provider string) string {
	if provider == "" {
		return g.defaultProvider
	}
	return provider
}

func (g *Gateway) lookup(provider string) (string, backend, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	key := g.resolve(provider)
	b, ok := g.backends[key]
	if !ok {
		return key, backend{}, fmt.Errorf("%w: %q is not configured", core.ErrProviderUnavailable, key)
	}
	return key, b, nil
}

// failure maps an adapter error onto the gateway taxonomy. Cancellation of
// the caller's context is reported as-is.
func (g *Gateway) failure(ctx context.Context, key string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	log.FromCtx(ctx).Warn().
		Err(err).
		Str("provider", key).
		Msg("provider call failed")

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out after %s", core.ErrProviderRequestFailed, key, g.timeout)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrProviderRequestFailed, key, err)
}

// complete fills in the fields adapters may leave empty.
func (g *Gateway) complete(key string, req core.ChatRequest, resp core.ChatResponse) core.ChatResponse {
	resp.Provider = key
	if resp.Model == "" {
		resp.Model = req.Model
	}
	if resp.InputTokens == 0 {
		resp.InputTokens = promptTokens(req)
	}
	if resp.OutputTokens == 0 && resp.Content != "" {
		resp.OutputTokens = tokenizer.Count(resp.Content)
	}
	resp.CostUSD = EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens)
	return resp
}

func (g *Gateway) record(ctx context.Context, resp core.ChatResponse, took time.Duration, stream bool) {
	log.FromCtx(ctx).Info().
		Str("provider", resp.Provider).
		Str("model", resp.Model).
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Float64("cost_usd", resp.CostUSD).
		Dur("duration", took).
		Bool("stream", stream).
		Msg("llm call completed")
}

func promptTokens(req core.ChatRequest) int {
	total := tokenizer.Count(req.SystemPrompt)
	for _, m := range req.Messages {
		total += tokenizer.Count(m.Content)
	}
	return total
}
