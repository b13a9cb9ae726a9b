package events

import (
	"context"
	"time"
)

// Outcome names how a worker run ended.
type Outcome string

const (
	OutcomeEnriched      Outcome = "enriched"
	OutcomePartial       Outcome = "partial"
	OutcomeProviderError Outcome = "provider_error"
	OutcomeParseError    Outcome = "parse_error"
	OutcomeEmpty         Outcome = "empty_result"
	OutcomeAborted       Outcome = "aborted"
)

// Event is published once per worker run, after the terminal write.
type Event struct {
	CompanyID int64     `json:"companyId"`
	Status    string    `json:"status"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers outcome events. Failures are reported to the caller but
// never affect persisted enrichment state.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }
