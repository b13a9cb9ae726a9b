package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"github.com/shpitdev/crm-enricher/internal/util"
)

// DefaultDeadline bounds a single provider call.
const DefaultDeadline = 45 * time.Second

// Generator performs one content generation request with the given API key.
type Generator interface {
	Generate(ctx context.Context, apiKey, prompt string) (string, error)
}

// Client issues provider calls under a hard deadline through a shared Breaker.
type Client struct {
	gen     Generator
	breaker *Breaker[string]
	logger  *slog.Logger
}

func NewClient(gen Generator, breaker *Breaker[string], logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if breaker == nil {
		breaker = NewBreaker[string](BreakerConfig{Logger: logger})
	}
	return &Client{gen: gen, breaker: breaker, logger: logger}
}

// Call returns the raw provider text or an *enrich.ProviderError.
//
// The generator races a timer set to deadline; whichever settles first wins and the
// other result is dropped. When the circuit is open no request is made and the error
// is service-unavailable class wrapping enrich.ErrCircuitOpen.
func (c *Client) Call(ctx context.Context, cred Credential, prompt string, deadline time.Duration) (string, error) {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	start := time.Now()
	text, err := c.breaker.Execute(func() (string, error) {
		return c.race(ctx, cred, prompt, deadline)
	})
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		err = Classify(err)
		c.logger.WarnContext(ctx, "provider call failed",
			"credential", cred.Label,
			"duration", elapsed.String(),
			"kind", enrich.KindOf(err).String(),
			"quota", enrich.IsQuota(err),
			"breaker", c.breaker.State(),
			"error", util.RedactSecrets(err.Error()),
		)
		return "", err
	}
	c.logger.DebugContext(ctx, "provider call ok",
		"credential", cred.Label,
		"duration", elapsed.String(),
		"bytes", len(text),
	)
	return text, nil
}

type generation struct {
	text string
	err  error
}

func (c *Client) race(ctx context.Context, cred Credential, prompt string, deadline time.Duration) (string, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned generator never blocks on send.
	done := make(chan generation, 1)
	go func() {
		text, err := c.gen.Generate(callCtx, cred.Key, prompt)
		done <- generation{text: text, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case g := <-done:
		return g.text, g.err
	case <-timer.C:
		return "", &enrich.ProviderError{
			Kind: enrich.FailureTimeout,
			Err:  fmt.Errorf("no response within %s", deadline),
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
