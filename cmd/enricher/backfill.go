package main

import (
	"fmt"
	"log/slog"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"github.com/shpitdev/crm-enricher/internal/enrich/worker"
	"github.com/shpitdev/crm-enricher/internal/util"
	"github.com/spf13/cobra"
)

func backfillCmd(envFile *string) *cobra.Command {
	var (
		status       string
		workers      int
		rateLimitRPS float64
		failFast     bool
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Enrich every company in a given status through a bounded worker pool",
		Long: `Enrich every company currently in --status. Failed runs are not retried; the
company is left not_enriched and is picked up by the next backfill.

Defaults for --workers and --rate-limit-rps come from BACKFILL_WORKERS and
BACKFILL_RATE_LIMIT_RPS.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, logger, err := openApp(ctx, *envFile)
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			st := enrich.Status(status)
			if status != "" && !st.Valid() {
				return fmt.Errorf("invalid --status %q", status)
			}

			opts := worker.Options{
				Workers:      a.Config.Backfill.Workers,
				RateLimitRPS: a.Config.Backfill.RateLimitRPS,
				Force:        force,
			}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			if cmd.Flags().Changed("rate-limit-rps") {
				opts.RateLimitRPS = rateLimitRPS
			}
			if failFast {
				opts.FailurePolicy = worker.FailurePolicyFailFast
			}

			out, err := a.Backfill(ctx, st, opts)
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}

			counts := map[string]int{}
			failed := 0
			for _, o := range out {
				if o.Err != nil {
					failed++
					logger.Warn("company not enriched",
						slog.Int64("company_id", o.CompanyID),
						slog.String("error", util.RedactSecrets(o.Err.Error())),
					)
					continue
				}
				counts[string(o.Result.Status)]++
			}
			return writeJSON(map[string]any{
				"companies": len(out),
				"failed":    failed,
				"byStatus":  counts,
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", string(enrich.StatusNotEnriched), "Only companies in this status; empty selects all")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (env: BACKFILL_WORKERS)")
	cmd.Flags().Float64Var(&rateLimitRPS, "rate-limit-rps", 0, "Global run start rate (RPS), 0 disables (env: BACKFILL_RATE_LIMIT_RPS)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first failed company")
	cmd.Flags().BoolVar(&force, "force", false, "Re-enrich companies that already hold a result")

	return cmd
}
