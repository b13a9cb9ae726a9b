package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultStaleAfter is how long a processing status may persist before readers
// treat the run as abandoned.
const DefaultStaleAfter = 2 * time.Minute

type Options struct {
	StaleAfter time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Service is the caller-facing side of enrichment: it flips a company into
// processing and reports its current state. Worker runs live in package worker.
type Service struct {
	store      Store
	creds      Credentials
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewService(store Store, creds Credentials, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:      store,
		creds:      creds,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

// Start requests enrichment of a company.
//
// Without Force, a company that is already processing or already holds a terminal
// result is answered from storage. Otherwise the status is moved to processing with
// a conditional update; only one concurrent caller can win it, the others get
// ErrAlreadyProcessing. A Result with Started set obliges the caller to dispatch a
// worker run.
func (s *Service) Start(ctx context.Context, id int64, opts StartOptions) (Result, error) {
	if s.creds == nil || s.creds.Len() == 0 {
		return Result{}, ErrCredentialMissing
	}

	snap, err := s.current(ctx, id)
	if err != nil {
		return Result{}, err
	}

	if !opts.Force {
		switch st := snap.Record.Status; {
		case st == StatusProcessing:
			return Result{Status: StatusProcessing}, nil
		case st.HasData():
			return withData(snap.Record), nil
		}
	}

	won, err := s.store.MarkProcessing(ctx, id, s.now())
	if err != nil {
		return Result{}, fmt.Errorf("mark company %d processing: %w", id, err)
	}
	if !won {
		return Result{}, ErrAlreadyProcessing
	}
	s.logger.InfoContext(ctx, "enrichment started", "company_id", id, "force", opts.Force, "previous_status", string(snap.Record.Status))
	return Result{Status: StatusProcessing, Started: true}, nil
}

// Status reports the current enrichment state, resetting an abandoned processing
// status on the way.
func (s *Service) Status(ctx context.Context, id int64) (Result, error) {
	snap, err := s.current(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if snap.Record.Status.HasData() {
		return withData(snap.Record), nil
	}
	return Result{Status: snap.Record.Status}, nil
}

// current loads a company and applies lazy staleness recovery. Nothing else ever
// clears an abandoned processing status.
func (s *Service) current(ctx context.Context, id int64) (Snapshot, error) {
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("load company %d: %w", id, err)
	}
	if snap.Record.Status != StatusProcessing {
		return snap, nil
	}

	now := s.now()
	age := now.Sub(snap.Record.UpdatedAt)
	if age <= s.staleAfter {
		return snap, nil
	}

	reset, err := s.store.ResetStaleProcessing(ctx, id, now.Add(-s.staleAfter), now)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reset stale company %d: %w", id, err)
	}
	if !reset {
		// Someone moved the row since we read it; report what is there now.
		return s.reload(ctx, id)
	}
	s.logger.WarnContext(ctx, "stale enrichment reset", "company_id", id, "age", age.Round(time.Second).String())
	snap.Record.Status = StatusNotEnriched
	snap.Record.UpdatedAt = now
	return snap, nil
}

func (s *Service) reload(ctx context.Context, id int64) (Snapshot, error) {
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("load company %d: %w", id, err)
	}
	return snap, nil
}

func withData(r Record) Result {
	d := r.Data
	if d.PainPoints == nil {
		d.PainPoints = []string{}
	}
	return Result{Status: r.Status, Data: &d}
}
