package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/export"
	"github.com/shpitdev/prospect-pipeline/internal/pipeline"
)

var (
	runFormat string
	runOutDir string
	runStdout bool
)

var runCmd = &cobra.Command{
	Use:   "run <keyword>",
	Short: "Run one keyword headlessly and export the leads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		keyword := strings.Join(args, " ")
		format, err := export.ParseFormat(runFormat)
		if err != nil {
			return err
		}

		// Pacing only matters to someone watching.
		cfg.Pipeline.EnrichingAfter = 0
		cfg.Pipeline.ValidationHold = 0

		e, err := initPipeline(ctx, cfg, "run", zap.L())
		if err != nil {
			return err
		}
		defer e.Close()

		if !e.Pipeline.Start(ctx, keyword) {
			return eris.New("keyword is required")
		}
		snap, err := e.Pipeline.Wait(ctx)
		if err != nil {
			return eris.Wrap(err, "run interrupted")
		}
		return writeRunResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), snap, format)
	},
}

func writeRunResult(stdout, stderr io.Writer, snap pipeline.Snapshot, format export.Format) error {
	if snap.Status == pipeline.Error {
		return eris.New(snap.Error)
	}
	if snap.Malformed {
		_, _ = fmt.Fprintln(stderr, "warning: the model response could not be parsed; no leads were stored")
	}
	if len(snap.Leads) == 0 {
		_, _ = fmt.Fprintf(stderr, "no leads found for %q\n", snap.Keyword)
		return nil
	}

	if runStdout {
		return export.Write(stdout, format, snap.Leads)
	}

	dir := runOutDir
	if dir == "" {
		dir = cfg.Export.Dir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create %s", dir)
	}
	path := filepath.Join(dir, export.Filename(snap.Keyword, format))
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := export.Write(f, format, snap.Leads); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}

	_, _ = fmt.Fprintf(stdout, "%d leads, %d sources -> %s\n", len(snap.Leads), len(snap.Sources), path)
	for _, src := range snap.Sources {
		_, _ = fmt.Fprintf(stdout, "  [%s] %s %s\n", src.Kind, src.Title, src.URI)
	}
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "csv", "export format: csv, xlsx, json or yaml")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "output directory (default from config export.dir)")
	runCmd.Flags().BoolVar(&runStdout, "stdout", false, "write the export to stdout instead of a file")
	rootCmd.AddCommand(runCmd)
}
