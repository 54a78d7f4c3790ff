package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/pipeline"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	j, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() }) //nolint:errcheck
	return j
}

func startedSnapshot(keyword string, at time.Time) pipeline.Snapshot {
	return pipeline.Snapshot{
		RunID:     uuid.NewString(),
		Keyword:   keyword,
		Status:    pipeline.Discovery,
		StartedAt: at,
	}
}

func TestJournal_StartAndFinish(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Second)
	snap := startedSnapshot("Marketing Agencies in London", start)
	require.NoError(t, j.RunStarted(ctx, snap))

	run, err := j.Get(ctx, snap.RunID)
	require.NoError(t, err)
	assert.Equal(t, "DISCOVERY", run.Status)
	assert.Nil(t, run.FinishedAt)
	assert.Empty(t, run.Leads)

	snap.Status = pipeline.Completed
	snap.Leads = []lead.Lead{{ID: "1", BusinessName: "Acme", HasWhatsApp: true}, {ID: "2", BusinessName: "Beta"}}
	snap.Sources = []lead.Source{{Kind: lead.SourceWeb, Title: "acme", URI: "https://acme.test"}}
	snap.FinishedAt = start.Add(5 * time.Second)
	require.NoError(t, j.RunFinished(ctx, snap))

	run, err = j.Get(ctx, snap.RunID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", run.Status)
	assert.Equal(t, "Marketing Agencies in London", run.Keyword)
	assert.Equal(t, 2, run.LeadCount)
	assert.Equal(t, 1, run.SourceCount)
	assert.False(t, run.Malformed)
	require.NotNil(t, run.FinishedAt)
	assert.True(t, run.FinishedAt.Equal(snap.FinishedAt))
	assert.True(t, run.StartedAt.Equal(start))
	assert.Equal(t, snap.Leads, run.Leads)
	assert.Equal(t, snap.Sources, run.Sources)
}

func TestJournal_FinishUnknownRun(t *testing.T) {
	j := newTestJournal(t)
	snap := startedSnapshot("x", time.Now())
	snap.Status = pipeline.Error

	err := j.RunFinished(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestJournal_GetUnknown(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournal_ListNewestFirst(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, kw := range []string{"first", "second", "third"} {
		require.NoError(t, j.RunStarted(ctx, startedSnapshot(kw, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].Keyword)
	assert.Equal(t, "first", runs[2].Keyword)
	assert.Nil(t, runs[0].Leads, "list does not load results")

	runs, err = j.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestJournal_ListEmpty(t *testing.T) {
	j := newTestJournal(t)
	runs, err := j.List(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestJournal_RecordsPipelineRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	j, err := Open(context.Background(), dbPath)
	require.NoError(t, err)

	p := pipeline.New(lead.ProspectFunc(func(ctx context.Context, keyword string) (lead.Result, error) {
		return lead.Empty(lead.ErrMalformedResponse), nil
	}), pipeline.Options{EnrichingAfter: time.Hour, Recorder: j, Logger: zap.NewNop()})

	require.True(t, p.Start(context.Background(), "dentists"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := p.Wait(ctx)
	require.NoError(t, err)

	// Closing straight after Wait must not lose the final write.
	require.NoError(t, j.Close())

	j, err = Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() }) //nolint:errcheck

	run, err := j.Get(context.Background(), snap.RunID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", run.Status)
	assert.True(t, run.Malformed)
	assert.Equal(t, 0, run.LeadCount)
}

func TestJournal_ShutdownSettlesRunInFlight(t *testing.T) {
	j := newTestJournal(t)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	p := pipeline.New(lead.ProspectFunc(func(ctx context.Context, keyword string) (lead.Result, error) {
		<-release
		return lead.Result{Leads: []lead.Lead{{BusinessName: "Late"}}}, nil
	}), pipeline.Options{EnrichingAfter: time.Hour, Recorder: j, Logger: zap.NewNop()})

	require.True(t, p.Start(context.Background(), "dentists"))
	runID := p.Snapshot().RunID
	require.Eventually(t, func() bool {
		_, err := j.Get(context.Background(), runID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.Shutdown(ctx)

	run, err := j.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", run.Status)
	assert.Equal(t, pipeline.ShutdownMessage, run.Error)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, pipeline.Error, p.Snapshot().Status)
}
