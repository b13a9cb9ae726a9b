package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"github.com/shpitdev/crm-enricher/internal/events"
	"github.com/shpitdev/crm-enricher/internal/provider"
	"github.com/shpitdev/crm-enricher/internal/util"
)

// writeTimeout bounds the terminal write, which must happen even after the run
// context has expired.
const writeTimeout = 5 * time.Second

// Caller is the provider surface a run needs; *provider.Client implements it.
type Caller interface {
	Call(ctx context.Context, cred provider.Credential, prompt string, deadline time.Duration) (string, error)
}

type RunnerOptions struct {
	// Deadline bounds each provider call.
	Deadline  time.Duration
	Publisher events.Publisher
	Now       func() time.Time
	Logger    *slog.Logger
}

func (o RunnerOptions) withDefaults() RunnerOptions {
	if o.Deadline <= 0 {
		o.Deadline = provider.DefaultDeadline
	}
	if o.Publisher == nil {
		o.Publisher = events.Nop{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Runner performs one enrichment run for a company already moved to processing.
type Runner struct {
	store     enrich.Store
	caller    Caller
	creds     provider.CredentialSet
	deadline  time.Duration
	publisher events.Publisher
	now       func() time.Time
	logger    *slog.Logger
}

func NewRunner(store enrich.Store, caller Caller, creds provider.CredentialSet, opts RunnerOptions) *Runner {
	opts = opts.withDefaults()
	return &Runner{
		store:     store,
		caller:    caller,
		creds:     creds,
		deadline:  opts.Deadline,
		publisher: opts.Publisher,
		now:       opts.Now,
		logger:    opts.Logger,
	}
}

// Run calls the provider, parses and classifies the answer, and makes exactly one
// terminal write: the result, or a reset to not_enriched. A company that no longer
// exists is skipped without a write and reported as enrich.ErrNotFound.
func (r *Runner) Run(ctx context.Context, id int64) error {
	snap, err := r.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, enrich.ErrNotFound) {
			r.logger.InfoContext(ctx, "company vanished before enrichment run", "company_id", id)
			return enrich.ErrNotFound
		}
		return r.fail(ctx, id, events.OutcomeAborted, fmt.Errorf("load company %d: %w", id, err))
	}

	text, err := r.callWithFailover(ctx, id, enrich.BuildPrompt(snap.Entity))
	if err != nil {
		return r.fail(ctx, id, events.OutcomeProviderError, err)
	}

	data, err := enrich.Parse(text)
	if err != nil {
		return r.fail(ctx, id, events.OutcomeParseError, err)
	}
	status, ok := enrich.Classify(*data)
	if !ok {
		return r.fail(ctx, id, events.OutcomeEmpty, enrich.ErrEmptyResult)
	}

	wctx, cancel := writeContext(ctx)
	defer cancel()
	if err := r.store.SaveResult(wctx, id, status, *data, r.now().UTC()); err != nil {
		// The result is lost; do not leave the row processing until it goes stale.
		return r.fail(ctx, id, events.OutcomeAborted, fmt.Errorf("save enrichment for company %d: %w", id, err))
	}
	r.logger.InfoContext(ctx, "enrichment complete", "company_id", id, "status", string(status), "pain_points", len(data.PainPoints))
	r.publish(ctx, events.Event{CompanyID: id, Status: string(status), Outcome: outcomeFor(status)})
	return nil
}

// Abort resets a run that could not finish normally, for example after a panic.
func (r *Runner) Abort(ctx context.Context, id int64, cause error) error {
	return r.fail(ctx, id, events.OutcomeAborted, cause)
}

// callWithFailover tries each credential in order. Only a quota-class failure moves on
// to the next one; any other failure ends the run with that error.
func (r *Runner) callWithFailover(ctx context.Context, id int64, prompt string) (string, error) {
	creds := r.creds.All()
	if len(creds) == 0 {
		return "", enrich.ErrCredentialMissing
	}

	var lastErr error
	for i, cred := range creds {
		text, err := r.caller.Call(ctx, cred, prompt, r.deadline)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !enrich.IsQuota(err) {
			return "", err
		}
		if i < len(creds)-1 {
			r.logger.WarnContext(ctx, "credential quota exhausted, failing over",
				"company_id", id,
				"credential", cred.Label,
				"next", creds[i+1].Label,
			)
		}
	}
	return "", lastErr
}

func (r *Runner) fail(ctx context.Context, id int64, outcome events.Outcome, cause error) error {
	r.logger.WarnContext(ctx, "enrichment failed",
		"company_id", id,
		"outcome", string(outcome),
		"error", util.RedactSecrets(cause.Error()),
	)

	wctx, cancel := writeContext(ctx)
	defer cancel()
	if err := r.store.ResetStatus(wctx, id, r.now().UTC()); err != nil {
		return errors.Join(cause, fmt.Errorf("reset company %d: %w", id, err))
	}
	r.publish(ctx, events.Event{
		CompanyID: id,
		Status:    string(enrich.StatusNotEnriched),
		Outcome:   outcome,
		Error:     util.RedactSecrets(cause.Error()),
	})
	return cause
}

func (r *Runner) publish(ctx context.Context, e events.Event) {
	e.At = r.now().UTC()
	pctx, cancel := writeContext(ctx)
	defer cancel()
	if err := r.publisher.Publish(pctx, e); err != nil {
		r.logger.WarnContext(ctx, "publish enrichment event failed", "company_id", e.CompanyID, "error", err)
	}
}

func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

func outcomeFor(s enrich.Status) events.Outcome {
	if s == enrich.StatusEnriched {
		return events.OutcomeEnriched
	}
	return events.OutcomePartial
}
