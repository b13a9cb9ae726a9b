package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shpitdev/crm-enricher/internal/app"
	"github.com/spf13/cobra"
)

func seedCmd(envFile *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert companies from a YAML or CSV fixture",
		Long: `Insert companies from a YAML fixture:

  companies:
    - name: Acme
      domain: acme.test
      address: 1 Main St

Files ending in .csv are read as CSV with a "name" column and optional
"domain" and "address" columns.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer func() { _ = f.Close() }()

			parse := app.ParseSeed
			if strings.EqualFold(filepath.Ext(file), ".csv") {
				parse = app.ParseSeedCSV
			}
			companies, err := parse(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, logger, err := openApp(ctx, *envFile)
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			ids, err := a.Seed(ctx, companies)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			return writeJSON(map[string]any{"ids": ids})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the YAML or CSV fixture")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
