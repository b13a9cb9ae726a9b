package enrich

import (
	"context"
	"time"
)

// Status is the enrichment state of a single company record.
type Status string

const (
	StatusNotEnriched Status = "not_enriched"
	StatusProcessing  Status = "processing"
	StatusEnriched    Status = "enriched"
	StatusPartial     Status = "partial"
)

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotEnriched, StatusProcessing, StatusEnriched, StatusPartial:
		return true
	}
	return false
}

// HasData reports whether a record in this state carries readable enrichment fields.
func (s Status) HasData() bool {
	return s == StatusEnriched || s == StatusPartial
}

// Data is the structured profile merged into a company.
//
// Nil string fields mean "unknown". PainPoints keeps the provider's order.
type Data struct {
	Description   *string  `json:"description"`
	Sector        *string  `json:"sector"`
	EstimatedSize *string  `json:"estimatedSize"`
	PainPoints    []string `json:"painPoints"`
}

// Empty reports whether no field carries a value.
func (d Data) Empty() bool {
	return d.Description == nil && d.Sector == nil && d.EstimatedSize == nil && len(d.PainPoints) == 0
}

// Entity holds the identity fields used to build the provider prompt.
type Entity struct {
	ID      int64
	Name    string
	Domain  string
	Address string
}

// Record is the enrichment state embedded in a company row.
type Record struct {
	Status    Status
	Data      Data
	UpdatedAt time.Time
}

// Snapshot is a company as read from storage.
type Snapshot struct {
	Entity Entity
	Record Record
}

// Store is the persistence boundary for enrichment state.
//
// Load returns ErrNotFound when the company does not exist. MarkProcessing is the
// compare-and-swap transition: it reports false when the row is already processing
// (or vanished). All other writes are last-write-wins on a single row.
type Store interface {
	Load(ctx context.Context, id int64) (Snapshot, error)
	MarkProcessing(ctx context.Context, id int64, now time.Time) (bool, error)
	ResetStaleProcessing(ctx context.Context, id int64, cutoff, now time.Time) (bool, error)
	ResetStatus(ctx context.Context, id int64, now time.Time) error
	SaveResult(ctx context.Context, id int64, status Status, data Data, now time.Time) error
}

// Credentials is the view of the configured provider credentials the orchestrator needs.
type Credentials interface {
	Len() int
}

// StartOptions controls Service.Start.
type StartOptions struct {
	// Force re-runs enrichment even when a terminal result is already stored.
	Force bool
}

// Result is what Start and Status report to callers.
type Result struct {
	Status Status
	// Data is set only for enriched and partial results.
	Data *Data
	// Started is true when this call won the transition to processing and the
	// caller is expected to dispatch a worker run.
	Started bool
}
