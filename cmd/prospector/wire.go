package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/config"
	"github.com/shpitdev/prospect-pipeline/internal/journal"
	"github.com/shpitdev/prospect-pipeline/internal/pipeline"
	"github.com/shpitdev/prospect-pipeline/internal/prospect"
)

// env bundles the long-lived pieces a command needs.
type env struct {
	Pipeline *pipeline.Pipeline
	Journal  *journal.Journal
}

// shutdownGrace is how long Close lets an in-flight run finish before it is
// recorded as abandoned.
const shutdownGrace = 5 * time.Second

func (e *env) Close() {
	if e.Pipeline != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		e.Pipeline.Shutdown(ctx)
		cancel()
	}
	if e.Journal != nil {
		if err := e.Journal.Close(); err != nil {
			zap.L().Warn("journal: close failed", zap.Error(err))
		}
	}
}

func initPipeline(ctx context.Context, c *config.Config, mode string, logger *zap.Logger) (*env, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	p, err := prospect.New(ctx, c, logger)
	if err != nil {
		return nil, eris.Wrap(err, "init prospector")
	}

	e := &env{}
	opts := pipeline.Options{
		EnrichingAfter: c.Pipeline.EnrichingAfter,
		ValidationHold: c.Pipeline.ValidationHold,
		RequestTimeout: c.Pipeline.RequestTimeout,
		Logger:         logger,
	}
	if c.Journal.Path != "" {
		j, err := journal.Open(ctx, c.Journal.Path)
		if err != nil {
			return nil, err
		}
		e.Journal = j
		opts.Recorder = j
	}

	e.Pipeline = pipeline.New(p, opts)
	return e, nil
}
