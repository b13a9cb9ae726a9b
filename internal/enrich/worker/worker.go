package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"golang.org/x/time/rate"
)

type FailurePolicy int

const (
	FailurePolicyPartialOutput FailurePolicy = iota
	FailurePolicyFailFast
)

// Options configures Backfill.
type Options struct {
	Workers int

	// RateLimitRPS is a global limit on started runs across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	FailurePolicy FailurePolicy

	// Force re-enriches companies that already hold a result.
	Force bool

	// RunTimeout bounds each company's run, failover included. Defaults to DefaultRunTimeout.
	RunTimeout time.Duration
}

// Starter is the caller-facing enrichment surface; *enrich.Service implements it.
type Starter interface {
	Start(ctx context.Context, id int64, opts enrich.StartOptions) (enrich.Result, error)
	Status(ctx context.Context, id int64) (enrich.Result, error)
}

type Output struct {
	CompanyID int64
	Result    enrich.Result
	// Ran is set when this backfill owned the processing transition and ran the provider.
	Ran bool
	Err error
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = DefaultRunTimeout
	}
	return o
}

// Backfill enriches ids through a bounded worker pool, one synchronous run per
// company. Failed runs are not retried: the company is left not_enriched for a
// later pass.
func Backfill(ctx context.Context, ids []int64, svc Starter, r runner, opts Options) ([]Output, error) {
	opts = opts.withDefaults()

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.FailurePolicy == FailurePolicyFailFast {
		runCtx, cancel = context.WithCancel(ctx)
	}
	if cancel != nil {
		defer cancel()
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Output, len(ids))

	type job struct {
		idx int
		id  int64
	}
	jobs := make(chan job)

	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			if cancel != nil {
				cancel()
			}
		}
		mu.Unlock()
	}

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			if runCtx.Err() != nil {
				return
			}
			res := backfillOne(runCtx, j.id, svc, r, limiter, opts)
			out[j.idx] = res
			if res.Err != nil && opts.FailurePolicy == FailurePolicyFailFast {
				fail(res.Err)
				return
			}
		}
	}

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go worker()
	}

feed:
	for i, id := range ids {
		select {
		case jobs <- job{idx: i, id: id}:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if opts.FailurePolicy == FailurePolicyFailFast {
		mu.Lock()
		err := firstErr
		mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func backfillOne(ctx context.Context, id int64, svc Starter, r runner, limiter *rate.Limiter, opts Options) Output {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return Output{CompanyID: id, Err: err}
		}
	}

	res, err := svc.Start(ctx, id, enrich.StartOptions{Force: opts.Force})
	if err != nil {
		return Output{CompanyID: id, Err: err}
	}
	if !res.Started {
		return Output{CompanyID: id, Result: res}
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.RunTimeout)
	runErr := r.Run(runCtx, id)
	cancel()
	final, err := svc.Status(ctx, id)
	if err != nil {
		return Output{CompanyID: id, Ran: true, Err: errors.Join(runErr, err)}
	}
	return Output{CompanyID: id, Result: final, Ran: true, Err: runErr}
}
