// Package prospect wires the model providers behind lead.Prospector.
package prospect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/redact"
)

// Traced logs a request/response summary around every Prospect call.
type Traced struct {
	next     lead.Prospector
	provider string
	log      *zap.Logger
}

// NewTraced wraps next. A nil logger uses the global one.
func NewTraced(next lead.Prospector, provider string, logger *zap.Logger) *Traced {
	if logger == nil {
		logger = zap.L()
	}
	return &Traced{next: next, provider: provider, log: logger}
}

func (t *Traced) Prospect(ctx context.Context, keyword string) (lead.Result, error) {
	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.log.Info("prospect request",
		zap.String("provider", t.provider),
		zap.String("keyword", redact.Secrets(keyword)),
		zap.String("deadline_in", deadlineIn),
	)

	start := time.Now()
	res, err := t.next.Prospect(ctx, keyword)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		t.log.Error("prospect response",
			zap.String("provider", t.provider),
			zap.Duration("duration", elapsed),
			zap.String("status", "error"),
			zap.String("error", redact.Error(err)),
		)
		return res, err
	}

	status := "ok"
	if res.Malformed != nil {
		status = "malformed"
	}
	incomplete := 0
	for _, l := range res.Leads {
		if !l.Complete() {
			incomplete++
		}
	}
	t.log.Info("prospect response",
		zap.String("provider", t.provider),
		zap.Duration("duration", elapsed),
		zap.String("status", status),
		zap.Int("leads", len(res.Leads)),
		zap.Int("incomplete_leads", incomplete),
		zap.Int("sources", len(res.Sources)),
	)
	return res, nil
}
