package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/config"
	"github.com/shpitdev/prospect-pipeline/internal/redact"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "prospector",
	Short:         "Keyword-driven B2B lead discovery",
	Long:          "Finds businesses matching a keyword with a search-grounded model call and exports them as CSV, XLSX, JSON or YAML.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", redact.Error(err))
		os.Exit(1)
	}
}
