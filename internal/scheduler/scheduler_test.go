package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockLens/internal/model"
)

// fakeRunner blocks each stage until release is closed when gate is set.
type fakeRunner struct {
	gate    chan struct{}
	started chan struct{}
	calls   atomic.Int32
	panics  bool
}

func (f *fakeRunner) run(stage model.Stage) model.ETLStats {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.panics {
		panic("boom")
	}
	now := time.Now()
	return model.ETLStats{Stage: stage, SymbolsProcessed: 3, StartTime: now, EndTime: now}
}

func (f *fakeRunner) FetchAndStoreSymbols(context.Context, string) model.ETLStats {
	return f.run(model.StageSymbols)
}

func (f *fakeRunner) FetchAndStoreFundamentals(context.Context) model.ETLStats {
	return f.run(model.StageFundamentals)
}

func (f *fakeRunner) FetchAndStoreHistoricalPrices(context.Context, int) model.ETLStats {
	return f.run(model.StagePrices)
}

func (f *fakeRunner) RunFull(context.Context, string, int) model.ETLStats {
	return f.run(model.StageFull)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return nil
}

func (r *recordingNotifier) SendWithRetry(ctx context.Context, text string, _ int) error {
	return r.Send(ctx, text)
}

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestGuard_SkipsWhileRunning(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler(context.Background(), runner, nil, nil, Config{Exchange: "US"})

	done := make(chan bool)
	go func() {
		_, ran := s.RunFullPipeline(context.Background(), 730)
		done <- ran
	}()
	<-runner.started
	assert.True(t, s.IsRunning())

	for _, call := range []func() (model.ETLStats, bool){
		func() (model.ETLStats, bool) { return s.RunSymbolsOnly(context.Background()) },
		func() (model.ETLStats, bool) { return s.RunFundamentalsOnly(context.Background()) },
		func() (model.ETLStats, bool) { return s.RunPricesOnly(context.Background(), 30) },
		func() (model.ETLStats, bool) { return s.RunFullPipeline(context.Background(), 30) },
	} {
		_, ran := call()
		assert.False(t, ran, "concurrent run must be skipped without blocking")
	}

	close(runner.gate)
	assert.True(t, <-done)
	assert.False(t, s.IsRunning())
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestGuard_RecordsAndNotifies(t *testing.T) {
	n := &recordingNotifier{}
	inv := &countingInvalidator{}
	s := NewScheduler(context.Background(), &fakeRunner{}, n, inv, Config{})

	assert.Nil(t, s.LastRun())
	stats, ran := s.RunSymbolsOnly(context.Background())
	require.True(t, ran)
	assert.Equal(t, model.StageSymbols, stats.Stage)

	last := s.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, 3, last.SymbolsProcessed)
	assert.Equal(t, int32(1), inv.n.Load())
	require.Len(t, n.msgs, 1)
	assert.Contains(t, n.msgs[0], "SYMBOLS")
}

func TestGuard_ReleasedAfterPanic(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{panics: true}, nil, nil, Config{})

	stats, ran := s.RunPricesOnly(context.Background(), 10)
	assert.True(t, ran)
	assert.Equal(t, 1, stats.Errors)
	assert.False(t, s.IsRunning())

	_, ran = s.RunPricesOnly(context.Background(), 10)
	assert.True(t, ran, "guard is free again")
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, nil, nil, Config{
		FullCron:   "0 0 2 * * *",
		PricesCron: "0 30 21 * * 1-5",
	})
	require.NoError(t, s.RegisterAll())
	assert.Len(t, s.Cron.Entries(), 2)

	bad := NewScheduler(context.Background(), &fakeRunner{}, nil, nil, Config{FullCron: "every day"})
	assert.Error(t, bad.RegisterAll())
}

func TestHandleCommand(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(context.Background(), runner, nil, nil, Config{})

	assert.Contains(t, s.HandleCommand(context.Background(), "/status"), "ETL: idle")
	assert.Contains(t, s.HandleCommand(context.Background(), "hello"), "/status")
	assert.Contains(t, s.HandleCommand(context.Background(), "   "), "/run")

	assert.Equal(t, "Full ETL pipeline started", s.HandleCommand(context.Background(), "/RUN"))
	require.Eventually(t, func() bool {
		return runner.calls.Load() == 1 && !s.IsRunning()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, model.StageFull, s.LastRun().Stage)
}

func TestStop_WaitsForBackgroundRun(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler(context.Background(), runner, nil, nil, Config{Exchange: "US"})
	s.Start()

	s.RunFullInBackground(context.Background(), 30)
	<-runner.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
	assert.False(t, s.IsRunning())
	require.NotNil(t, s.LastRun())
	assert.Equal(t, model.StageFull, s.LastRun().Stage)
}
