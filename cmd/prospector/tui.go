package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/tui"
)

var tuiLogFile string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Anything written to stderr would tear the alt screen.
		logger := zap.NewNop()
		if tuiLogFile != "" {
			zapCfg := zap.NewProductionConfig()
			zapCfg.OutputPaths = []string{tuiLogFile}
			zapCfg.ErrorOutputPaths = []string{tuiLogFile}
			l, err := zapCfg.Build()
			if err != nil {
				return eris.Wrap(err, "tui: build file logger")
			}
			logger = l
		}
		zap.ReplaceGlobals(logger)

		e, err := initPipeline(ctx, cfg, "tui", logger)
		if err != nil {
			return err
		}
		defer e.Close()

		return tui.Run(ctx, e.Pipeline, cfg.Export.Dir)
	},
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "write logs to this file while the UI is open")
	rootCmd.AddCommand(tuiCmd)
}
