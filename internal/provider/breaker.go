package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
)

type BreakerConfig struct {
	Name string
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a single trial call.
	ResetTimeout time.Duration
	Logger       *slog.Logger
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Name == "" {
		c.Name = "provider"
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Breaker guards calls to one upstream endpoint. It is safe for concurrent use and
// meant to be shared by every caller of that endpoint.
//
// CLOSED counts consecutive failures; at the threshold it goes OPEN and rejects
// calls with enrich.ErrCircuitOpen. After ResetTimeout exactly one trial call is let
// through: success closes the circuit, failure reopens it and restarts the timer.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func NewBreaker[T any](cfg BreakerConfig) *Breaker[T] {
	cfg = cfg.withDefaults()
	threshold := uint32(cfg.FailureThreshold)
	logger := cfg.Logger
	return &Breaker[T]{
		cb: gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.ResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// A caller giving up is not a verdict on the upstream.
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, enrich.ErrCircuitOpen
	}
	return out, err
}

// State returns "closed", "half-open" or "open".
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}
