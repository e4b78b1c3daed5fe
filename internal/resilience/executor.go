package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Classification tells the executor how to treat an operation failure.
type Classification struct {
	// Transient failures are retried with backoff; anything else propagates
	// immediately.
	Transient bool
	// RecordFailure controls whether the circuit breaker counts the failure.
	RecordFailure bool
}

// Classifier maps an operation error to its Classification.
type Classifier func(err error) Classification

// Observer receives retry lifecycle events, for metrics.
type Observer interface {
	RetryScheduled(operation string, attempt int, delay time.Duration)
	RetriesExhausted(operation string, attempts int)
}

type noopObserver struct{}

func (noopObserver) RetryScheduled(string, int, time.Duration) {}
func (noopObserver) RetriesExhausted(string, int)              {}

// Executor runs remote operations with exponential backoff on transient
// failures and an optional per-operation circuit breaker. It keeps no state
// across calls beyond the breakers.
type Executor struct {
	cfg    Config
	logger *slog.Logger
	obs    Observer
	sleep  func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewExecutor creates an Executor. A nil observer disables event reporting.
func NewExecutor(cfg Config, logger *slog.Logger, obs Observer) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = noopObserver{}
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		obs:      obs,
		sleep:    sleepContext,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn, retrying transient failures per the configured policy.
// The final error is the last one returned by fn.
func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify Classifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = defaultClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, op, fn, classify)
	}

	breaker := e.circuitBreaker(op, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, op, fn, classify)
	})
	return err
}

func (e *Executor) executeWithRetry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify Classifier,
) error {
	maxRetries := e.cfg.MaxRetries

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("operation succeeded after retry",
					"operation", operation,
					"attempt", attempt,
				)
			}
			return nil
		}

		class := classify(err)
		if !class.Transient {
			e.logger.Error("non-retryable failure",
				"operation", operation,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		if attempt >= maxRetries {
			e.logger.Error("retries exhausted",
				"operation", operation,
				"attempts", attempt+1,
				"error", err,
			)
			e.obs.RetriesExhausted(operation, attempt+1)
			return err
		}

		delay := e.backoffDelay(attempt)
		e.logger.Warn("retrying after transient failure",
			"operation", operation,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"delay", delay,
			"error", err,
		)
		e.obs.RetryScheduled(operation, attempt+1, delay)

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			// Request was cancelled mid-backoff; surface the last failure.
			return err
		}
	}
}

// backoffDelay computes initial * multiplier^attempt, scaled by a uniform
// factor in [0.5, 1.5) when jitter is on.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	delay := float64(e.cfg.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= e.cfg.Multiplier
	}
	if e.cfg.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

func (e *Executor) circuitBreaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("circuit breaker state change",
				"operation", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

// IsCircuitOpen reports whether err came from an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) Classification {
	return Classification{Transient: false, RecordFailure: true}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
