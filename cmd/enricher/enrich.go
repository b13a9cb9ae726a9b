package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"github.com/shpitdev/crm-enricher/internal/util"
	"github.com/spf13/cobra"
)

func enrichCmd(envFile *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "enrich <company-id>",
		Short: "Enrich one company in the foreground and print the stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, logger, err := openApp(ctx, *envFile)
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			res, runErr := a.EnrichNow(ctx, id, force)
			if err := printResult(id, res, runErr); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-enrich even when a result is already stored")
	return cmd
}

func statusCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <company-id>",
		Short: "Print a company's enrichment status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, logger, err := openApp(ctx, *envFile)
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			res, err := a.Service.Status(ctx, id)
			if err != nil {
				return err
			}
			return printResult(id, res, nil)
		},
	}
}

type resultOutput struct {
	CompanyID int64        `json:"companyId"`
	Status    string       `json:"status"`
	Data      *enrich.Data `json:"data,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func printResult(id int64, res enrich.Result, runErr error) error {
	out := resultOutput{CompanyID: id, Status: string(res.Status), Data: res.Data}
	if runErr != nil {
		out.Error = util.RedactSecrets(runErr.Error())
	}
	return writeJSON(out)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
