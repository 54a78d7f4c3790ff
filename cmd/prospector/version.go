package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shpitdev/prospect-pipeline/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Current)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
