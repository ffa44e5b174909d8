package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

type BreakerConfig struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
	// Interval clears failure counts while closed. Zero keeps them forever.
	Interval time.Duration
}

// CircuitBreakerCompleter fails fast with ErrCompletion while the wrapped
// completer keeps failing.
type CircuitBreakerCompleter struct {
	inner   contractx.Completer
	breaker *gobreaker.CircuitBreaker[string]
}

var _ contractx.Completer = (*CircuitBreakerCompleter)(nil)

func NewCircuitBreakerCompleter(inner contractx.Completer, cfg BreakerConfig) (*CircuitBreakerCompleter, error) {
	if inner == nil {
		return nil, errors.New("inner completer is required")
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}
	name := cfg.Name
	if name == "" {
		name = "llm"
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the upstream's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &CircuitBreakerCompleter{inner: inner, breaker: cb}, nil
}

func (c *CircuitBreakerCompleter) Complete(
	ctx context.Context,
	prompt string,
	opts contractx.CompletionOptions,
) (string, error) {
	out, err := c.breaker.Execute(func() (string, error) {
		return c.inner.Complete(ctx, prompt, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: circuit %s open: %v", contractx.ErrCompletion, c.breaker.Name(), err)
		}
		return "", err
	}
	return out, nil
}

func (c *CircuitBreakerCompleter) State() gobreaker.State {
	return c.breaker.State()
}
