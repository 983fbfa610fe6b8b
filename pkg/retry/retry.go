package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

type Operation = func() error

type Config struct {
	MaxRetries    int
	BackoffFactor float64
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Jitter        time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil means every error except a Stop is retried.
	Retryable func(error) bool
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:    5,
		BackoffFactor: 2.15,
		InitialDelay:  300 * time.Millisecond,
		MaxDelay:      20 * time.Second,
		Jitter:        50 * time.Millisecond,
	}
}

// NewOnlyConfig retries up to n times, and only errors matching target.
func NewOnlyConfig(n int, target error) *Config {
	cfg := NewDefaultConfig()
	cfg.MaxRetries = n
	cfg.InitialDelay = 100 * time.Millisecond
	cfg.MaxDelay = 2 * time.Second
	cfg.Retryable = func(err error) bool {
		return errors.Is(err, target)
	}
	return cfg
}

type stopError struct {
	err error
}

func (s *stopError) Error() string { return s.err.Error() }
func (s *stopError) Unwrap() error { return s.err }

// Stop marks err as permanent. Do returns the unwrapped error immediately.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

type Retrier struct {
	config *Config
}

func NewRetrier(config *Config) *Retrier {
	return &Retrier{
		config: config,
	}
}

func NewDefaultRetrier() *Retrier {
	return NewRetrier(NewDefaultConfig())
}

func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var err error
	delay := r.config.InitialDelay
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}
		if r.config.Retryable != nil && !r.config.Retryable(err) {
			return err
		}
		if attempt == r.config.MaxRetries {
			return err
		}

		jitter := time.Duration(rnd.Float64() * float64(r.config.Jitter))
		nextDelay := delay + jitter
		if nextDelay > r.config.MaxDelay {
			nextDelay = r.config.MaxDelay + jitter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nextDelay):
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
	return err
}
