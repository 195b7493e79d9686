package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// Operation names the wrapped call in attempt events and logs.
	Operation string

	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds a random, non-negative jitter of up to this
	// fraction of the computed delay (0.0 = no jitter, max 1.0). Default: 0.25.
	JitterFraction float64

	// AttemptTimeout bounds each individual call. Zero means no per-call
	// timeout beyond the caller's context.
	AttemptTimeout time.Duration

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used. PermanentError is never retried.
	ShouldRetry func(err error) bool

	// OnAttempt is called once per attempt, after the attempt completes.
	OnAttempt func(AttemptEvent)
}

// AttemptEvent describes the outcome of one attempt.
type AttemptEvent struct {
	Operation   string        `json:"operation"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Delay       time.Duration `json:"delay"` // backoff scheduled after this attempt, zero when not retrying
	Err         error         `json:"-"`
	Retrying    bool          `json:"retrying"`
}

// FatalError is returned when an operation gives up, either because
// attempts ran out or because the error was classified as permanent.
type FatalError struct {
	Operation string
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *FatalError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Operation, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// DefaultRetryConfig returns a sensible retry configuration for API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Do executes fn with retry logic according to cfg. It retries only on
// errors deemed transient (via ShouldRetry or the default IsTransient check).
// Context cancellation stops retries immediately. Every non-nil error
// returned is a *FatalError wrapping the last cause.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with retry logic. Same semantics as Do
// but preserves the return value from the successful call.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := callOnce(ctx, cfg.AttemptTimeout, fn)
		ev := AttemptEvent{
			Operation:   cfg.Operation,
			Attempt:     attempt,
			MaxAttempts: cfg.MaxAttempts,
			Err:         err,
		}
		if err == nil {
			emit(cfg, ev)
			return val, nil
		}
		lastErr = err

		// Caller cancellation, permanent errors and the last attempt all stop here.
		if ctx.Err() != nil || IsPermanent(err) || !shouldRetry(err) {
			emit(cfg, ev)
			return zero, &FatalError{Operation: cfg.Operation, Attempts: attempt, Err: lastErr}
		}
		if attempt == cfg.MaxAttempts {
			emit(cfg, ev)
			break
		}

		ev.Delay = computeBackoff(attempt, cfg)
		ev.Retrying = true
		emit(cfg, ev)

		timer := time.NewTimer(ev.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &FatalError{Operation: cfg.Operation, Attempts: attempt, Err: lastErr}
		case <-timer.C:
		}
	}

	return zero, &FatalError{
		Operation: cfg.Operation,
		Attempts:  cfg.MaxAttempts,
		Exhausted: true,
		Err:       lastErr,
	}
}

func callOnce[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

func emit(cfg RetryConfig, ev AttemptEvent) {
	fields := []zap.Field{
		zap.String("operation", ev.Operation),
		zap.Int("attempt", ev.Attempt),
		zap.Int("max_attempts", ev.MaxAttempts),
	}
	switch {
	case ev.Err == nil:
		zap.L().Debug("attempt succeeded", fields...)
	case ev.Retrying:
		zap.L().Warn("retrying operation", append(fields, zap.Duration("delay", ev.Delay), zap.Error(ev.Err))...)
	default:
		zap.L().Warn("operation failed", append(fields, zap.Error(ev.Err))...)
	}
	if cfg.OnAttempt != nil {
		cfg.OnAttempt(ev)
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.Operation == "" {
		cfg.Operation = "call"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.JitterFraction > 1 {
		cfg.JitterFraction = 1
	}
	return cfg
}

// computeBackoff returns the delay after the given 1-based attempt:
// InitialBackoff * Multiplier^(attempt-1) plus up to JitterFraction of that,
// capped at MaxBackoff. With JitterFraction <= 1 and Multiplier >= 2 the
// sequence never decreases.
func computeBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt-1))

	if cfg.JitterFraction > 0 {
		delay += rand.Float64() * cfg.JitterFraction * delay
	}

	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	return time.Duration(delay)
}
