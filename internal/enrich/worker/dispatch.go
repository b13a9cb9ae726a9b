package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"github.com/shpitdev/crm-enricher/internal/util"
)

// DefaultRunTimeout bounds a whole dispatched run, failover included.
const DefaultRunTimeout = 90 * time.Second

type runner interface {
	Run(ctx context.Context, id int64) error
	Abort(ctx context.Context, id int64, cause error) error
}

// Dispatcher runs enrichment in the background. Callers get no result; the outcome
// is only observable through the stored status.
type Dispatcher struct {
	runner  runner
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(r *Runner, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return newDispatcher(r, timeout, logger)
}

func newDispatcher(r runner, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{runner: r, timeout: timeout, logger: logger}
}

// Dispatch starts a run for id and returns immediately. The run outlives ctx's
// cancellation but keeps its values. A panic inside the run is recovered and the
// company is reset to not_enriched.
func (d *Dispatcher) Dispatch(ctx context.Context, id int64) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		defer func() {
			if p := recover(); p != nil {
				d.logger.ErrorContext(runCtx, "enrichment run panicked", "company_id", id, "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
				_ = d.runner.Abort(runCtx, id, fmt.Errorf("panic: %v", p))
			}
		}()

		if err := d.runner.Run(runCtx, id); err != nil && !errors.Is(err, enrich.ErrNotFound) {
			d.logger.DebugContext(runCtx, "dispatched run ended with error", "company_id", id, "error", util.RedactSecrets(err.Error()))
		}
	}()
}

// Wait blocks until every dispatched run has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
