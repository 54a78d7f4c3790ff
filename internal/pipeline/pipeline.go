// Package pipeline sequences a single prospecting call through the phases a
// user watches: Discovery, Enriching, AiValidation and then Completed or Error.
package pipeline

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/redact"
)

// FailureMessage is the only error text a run ever exposes.
const FailureMessage = "Failed to process pipeline. Please try a different keyword or check your connection."

// ShutdownMessage is recorded for a run still in flight when the pipeline shuts down.
const ShutdownMessage = "Pipeline shut down before the run finished."

const (
	DefaultEnrichingAfter = 2500 * time.Millisecond
	DefaultValidationHold = 2 * time.Second
	DefaultRequestTimeout = 3 * time.Minute
)

// Snapshot is a point-in-time copy of the pipeline state.
type Snapshot struct {
	RunID   string        `json:"runId,omitempty" yaml:"runId,omitempty"`
	Keyword string        `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	Status  Status        `json:"status" yaml:"status"`
	Leads   []lead.Lead   `json:"leads" yaml:"leads"`
	Sources []lead.Source `json:"sources" yaml:"sources"`
	Error   string        `json:"error,omitempty" yaml:"error,omitempty"`

	// Malformed is true when the model answered with an unparseable body.
	// The run still completes, with no leads.
	Malformed bool `json:"malformed" yaml:"malformed"`

	StartedAt  time.Time `json:"startedAt,omitzero" yaml:"startedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitzero" yaml:"finishedAt,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Leads = append([]lead.Lead{}, s.Leads...)
	out.Sources = append([]lead.Source{}, s.Sources...)
	return out
}

// Recorder receives run lifecycle events. Errors are logged and otherwise ignored.
type Recorder interface {
	RunStarted(ctx context.Context, snap Snapshot) error
	RunFinished(ctx context.Context, snap Snapshot) error
}

type Options struct {
	// EnrichingAfter is when a run still in Discovery is shown as Enriching.
	EnrichingAfter time.Duration
	// ValidationHold is how long AiValidation is shown before results appear.
	ValidationHold time.Duration
	// RequestTimeout bounds the model call. Zero means no bound.
	RequestTimeout time.Duration

	Recorder Recorder
	Logger   *zap.Logger
}

// DefaultOptions returns the standard pacing.
func DefaultOptions() Options {
	return Options{
		EnrichingAfter: DefaultEnrichingAfter,
		ValidationHold: DefaultValidationHold,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Pipeline runs at most one prospecting call at a time.
type Pipeline struct {
	prospector lead.Prospector
	opts       Options
	log        *zap.Logger

	mu    sync.Mutex
	gen   uint64
	snap  Snapshot
	done  chan struct{}
	timer *time.Timer
	subs  map[chan Snapshot]struct{}

	// closed stops recorder calls; rec counts calls in progress.
	closed bool
	rec    sync.WaitGroup
}

func New(p lead.Prospector, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	return &Pipeline{
		prospector: p,
		opts:       opts,
		log:        logger,
		snap: Snapshot{
			Status:  Idle,
			Leads:   []lead.Lead{},
			Sources: []lead.Source{},
		},
		subs: make(map[chan Snapshot]struct{}),
	}
}

// Start begins a run for keyword and returns immediately.
//
// It returns false, changing nothing, when keyword is blank or a run is
// already in flight. ctx only supplies values: cancelling it does not abort
// the run.
func (p *Pipeline) Start(ctx context.Context, keyword string) bool {
	if strings.TrimSpace(keyword) == "" {
		return false
	}

	p.mu.Lock()
	if p.snap.Status.Running() {
		p.mu.Unlock()
		return false
	}
	p.gen++
	gen := p.gen
	p.snap = Snapshot{
		RunID:     uuid.NewString(),
		Keyword:   keyword,
		Status:    Discovery,
		Leads:     []lead.Lead{},
		Sources:   []lead.Source{},
		StartedAt: time.Now().UTC(),
	}
	p.done = make(chan struct{})
	p.timer = time.AfterFunc(p.opts.EnrichingAfter, func() {
		p.advance(gen, Enriching, Discovery)
	})
	started := p.snap.clone()
	p.publishLocked()
	p.mu.Unlock()

	p.log.Info("pipeline run started",
		zap.String("run_id", started.RunID),
		zap.String("keyword", redact.Secrets(keyword)),
	)

	runCtx := context.WithoutCancel(ctx)
	go p.run(runCtx, gen, started)
	return true
}

func (p *Pipeline) run(ctx context.Context, gen uint64, started Snapshot) {
	if p.beginRecord() {
		if err := p.opts.Recorder.RunStarted(ctx, started); err != nil {
			p.log.Warn("journal: record start failed", zap.String("run_id", started.RunID), zap.Error(err))
		}
		p.rec.Done()
	}

	callCtx := ctx
	if p.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.opts.RequestTimeout)
		defer cancel()
	}

	res, err := p.prospector.Prospect(callCtx, started.Keyword)
	if err != nil {
		p.log.Error("pipeline run failed",
			zap.String("run_id", started.RunID),
			zap.String("error", redact.Error(err)),
		)
		p.finish(ctx, gen, func(s *Snapshot) {
			s.Status = Error
			s.Error = FailureMessage
		})
		return
	}
	if res.Malformed != nil {
		p.log.Warn("model response could not be parsed; completing with no leads",
			zap.String("run_id", started.RunID),
			zap.String("error", redact.Error(res.Malformed)),
		)
	}

	p.advance(gen, AiValidation)
	if p.opts.ValidationHold > 0 {
		time.Sleep(p.opts.ValidationHold)
	}

	p.finish(ctx, gen, func(s *Snapshot) {
		s.Status = Completed
		if res.Leads != nil {
			s.Leads = res.Leads
		}
		if res.Sources != nil {
			s.Sources = res.Sources
		}
		s.Malformed = res.Malformed != nil
	})
}

// advance moves run gen forward to status to. When from is given the run must
// currently be in one of those states. A stale generation or a settled run is
// left alone, so a late cosmetic timer cannot regress a run.
func (p *Pipeline) advance(gen uint64, to Status, from ...Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || !p.snap.Status.Running() || p.snap.Status >= to {
		return
	}
	if len(from) > 0 && !slices.Contains(from, p.snap.Status) {
		return
	}
	p.snap.Status = to
	p.publishLocked()
}

// finish settles run gen. Waiters are released only after the recorder has seen
// the final snapshot.
func (p *Pipeline) finish(ctx context.Context, gen uint64, apply func(*Snapshot)) {
	p.mu.Lock()
	if gen != p.gen || !p.snap.Status.Running() {
		p.mu.Unlock()
		return
	}
	apply(&p.snap)
	p.snap.FinishedAt = time.Now().UTC()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	done := p.done
	record := p.beginRecordLocked()
	final := p.snap.clone()
	p.publishLocked()
	p.mu.Unlock()
	defer close(done)

	p.log.Info("pipeline run finished",
		zap.String("run_id", final.RunID),
		zap.Stringer("status", final.Status),
		zap.Int("leads", len(final.Leads)),
		zap.Int("sources", len(final.Sources)),
		zap.Bool("malformed", final.Malformed),
		zap.Duration("duration", final.FinishedAt.Sub(final.StartedAt).Round(time.Millisecond)),
	)

	if record {
		defer p.rec.Done()
		if err := p.opts.Recorder.RunFinished(ctx, final); err != nil {
			p.log.Warn("journal: record finish failed", zap.String("run_id", final.RunID), zap.Error(err))
		}
	}
}

func (p *Pipeline) beginRecord() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.beginRecordLocked()
}

func (p *Pipeline) beginRecordLocked() bool {
	if p.opts.Recorder == nil || p.closed {
		return false
	}
	p.rec.Add(1)
	return true
}

// Shutdown waits for the current run to settle and be recorded. If ctx ends
// first the run is settled as Error with ShutdownMessage. The recorder is not
// called again once Shutdown returns, so it is safe to close afterwards.
func (p *Pipeline) Shutdown(ctx context.Context) {
	if _, err := p.Wait(ctx); err != nil {
		p.mu.Lock()
		gen := p.gen
		p.mu.Unlock()
		p.log.Warn("pipeline shut down with a run in flight", zap.Error(err))
		p.finish(context.WithoutCancel(ctx), gen, func(s *Snapshot) {
			s.Status = Error
			s.Error = ShutdownMessage
		})
	}

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.rec.Wait()
}

// Snapshot returns a copy of the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.clone()
}

// Subscribe returns a channel that always holds the latest state change.
// Intermediate snapshots may be dropped if the reader falls behind.
// The returned func unsubscribes and closes the channel.
func (p *Pipeline) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	ch <- p.snap.clone()
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			close(ch)
			p.mu.Unlock()
		})
	}
}

func (p *Pipeline) publishLocked() {
	for ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p.snap.clone():
		default:
		}
	}
}

// Wait blocks until the current run settles and returns the final snapshot.
// With no run started it returns the idle snapshot immediately.
func (p *Pipeline) Wait(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return p.Snapshot(), ctx.Err()
		}
	}
	return p.Snapshot(), nil
}
