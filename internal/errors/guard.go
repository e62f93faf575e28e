package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// GuardConfig configures the protection wrapped around one external provider.
type GuardConfig struct {
	// Name identifies the provider in logs and error messages.
	Name string

	// Code is the error code reported when the call finally fails.
	Code string

	// Timeout bounds each individual attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration

	// Retry is the backoff policy for transient failures.
	Retry RetryConfig

	// MaxFailures consecutive transient failures open the circuit.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration

	// RequestsPerSecond caps the call rate. Zero means unlimited.
	RequestsPerSecond float64

	// Burst is the limiter bucket size (default 1).
	Burst int
}

// Guard applies timeout, rate limiting, circuit breaking and retry to provider calls.
type Guard struct {
	cfg     GuardConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
}

// NewGuard creates a Guard from cfg.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Code == "" {
		cfg.Code = ErrCodeInternal
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = IsRetryable
	}

	g := &Guard{
		cfg: cfg,
		breaker: NewCircuitBreaker(cfg.Name,
			WithMaxFailures(cfg.MaxFailures),
			WithResetTimeout(cfg.ResetTimeout),
		),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// Breaker exposes the circuit breaker for status reporting.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

// Do runs fn under g. The context passed to fn carries the per-attempt deadline.
// Failures are reported as an *Error with the guard's code wrapping the last cause.
func Do[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempt := 0

	result, err := RetryWithResult(ctx, g.cfg.Retry, func() (T, error) {
		attempt++
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		v, err := CircuitExecute(g.breaker, func() (T, error) {
			return runAttempt(ctx, g.cfg.Timeout, fn)
		}, IsRetryable)
		if errors.Is(err, ErrCircuitOpen) {
			return zero, New(ErrCodeCircuitOpen,
				fmt.Sprintf("%s circuit breaker is open", g.cfg.Name), err).
				WithSuggestion("The provider failed repeatedly; retry after the reset timeout.")
		}
		if err != nil {
			slog.Debug("provider attempt failed",
				slog.String("provider", g.cfg.Name),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}
		return v, err
	})
	if err == nil {
		return result, nil
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return zero, err
	}
	return zero, New(g.cfg.Code, fmt.Sprintf("%s call failed", g.cfg.Name), err).
		WithDetail("provider", g.cfg.Name).
		WithDetail("attempts", fmt.Sprint(attempt))
}

// runAttempt applies the per-attempt deadline and classifies transport failures.
func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	v, err := fn(callCtx)
	if err == nil {
		return v, nil
	}
	if _, ok := As(err); ok {
		return v, err
	}
	return v, Classify(err)
}

// Classify maps a raw transport error into a provider *Error.
// The parent context's own cancellation is passed through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeProviderTimeout, "provider request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return New(ErrCodeProviderTimeout, "provider request timed out", err)
		}
		return New(ErrCodeProviderUnavailable, "provider unreachable", err)
	}
	return New(ErrCodeProviderRejected, err.Error(), err)
}

// FromHTTPStatus classifies a provider HTTP response status.
func FromHTTPStatus(status int, message string, cause error) *Error {
	var code string
	switch {
	case status == http.StatusTooManyRequests:
		code = ErrCodeProviderRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = ErrCodeProviderTimeout
	case status >= 500:
		code = ErrCodeProviderUnavailable
	default:
		code = ErrCodeProviderRejected
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return New(code, message, cause).WithDetail("status", fmt.Sprint(status))
}
