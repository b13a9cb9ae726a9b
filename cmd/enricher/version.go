package main

import (
	"fmt"

	"github.com/shpitdev/crm-enricher/internal/version"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("enricher version %s\n", version.Current)
		},
	}
}
