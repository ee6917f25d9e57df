package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/seedforge/internal/config"
	"github.com/raphaelgruber/seedforge/internal/llm"
	"github.com/raphaelgruber/seedforge/internal/metrics"
	"github.com/raphaelgruber/seedforge/internal/models"
	"github.com/raphaelgruber/seedforge/internal/store"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type generateFunc func(ctx context.Context, seed models.Record, cfg config.RunConfig) ([]models.Record, error)

func (f generateFunc) Generate(ctx context.Context, seed models.Record, cfg config.RunConfig) ([]models.Record, error) {
	return f(ctx, seed, cfg)
}

// echoGenerator returns one record derived from the seed instruction.
func echoGenerator() generateFunc {
	return func(_ context.Context, seed models.Record, _ config.RunConfig) ([]models.Record, error) {
		return []models.Record{{Instruction: seed.Instruction + "'", Input: "ctx", Output: "out"}}, nil
	}
}

type memorySaver struct {
	mu    sync.Mutex
	saves [][]models.Record
	fail  func(call int) error
}

func (m *memorySaver) Save(records []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.saves)
	m.saves = append(m.saves, records)
	if m.fail != nil {
		return m.fail(call)
	}
	return nil
}

func (m *memorySaver) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

type recordingReporter struct {
	mu       sync.Mutex
	progress []Progress
	failed   []int
	onDone   func(p Progress)
}

func (r *recordingReporter) TaskCompleted(p Progress) {
	r.mu.Lock()
	r.progress = append(r.progress, p)
	r.mu.Unlock()
	if r.onDone != nil {
		r.onDone(p)
	}
}

func (r *recordingReporter) TaskFailed(index int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, index)
}

func seedsN(n int) []models.Record {
	seeds := make([]models.Record, n)
	for i := range seeds {
		seeds[i] = models.Record{Instruction: fmt.Sprintf("Q%d", i), Input: "C", Output: "A"}
	}
	return seeds
}

func testRunConfig() config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.MaxConcurrency = 2
	cfg.RequestTimeout = 0
	return cfg
}

func zeroBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func TestEngineRunCompletes(t *testing.T) {
	saver := &memorySaver{}
	reporter := &recordingReporter{}
	collector := metrics.NewCollector()
	engine := NewEngine(echoGenerator(), saver,
		WithLogger(quietLogger), WithReporter(reporter), WithMetrics(collector))

	res, err := engine.Run(context.Background(), seedsN(3), testRunConfig(), NewCancelSignal())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Submitted)
	assert.Equal(t, 3, res.Completed)
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Records, 3)

	require.Equal(t, 1, saver.calls(), "only the final snapshot for fewer tasks than the interval")
	assert.ElementsMatch(t, res.Records, saver.saves[0])
	assert.Equal(t, 1, res.Snapshots)

	require.Len(t, reporter.progress, 3)
	for i, p := range reporter.progress {
		assert.Equal(t, i+1, p.Completed)
		assert.Equal(t, 3, p.Total)
	}
	assert.InDelta(t, 1.0, reporter.progress[2].Fraction, 1e-9)

	assert.Equal(t, int64(3), collector.Count(metrics.CounterSubmitted))
	assert.Equal(t, int64(3), collector.Count(metrics.CounterSucceeded))
	assert.Equal(t, int64(3), collector.Count(metrics.CounterRecords))
}

func TestEngineRunEmptySeeds(t *testing.T) {
	saver := &memorySaver{}
	engine := NewEngine(echoGenerator(), saver, WithLogger(quietLogger))

	res, err := engine.Run(context.Background(), nil, testRunConfig(), NewCancelSignal())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
	require.Equal(t, 1, saver.calls())
	assert.Empty(t, saver.saves[0])
}

func TestEngineRunFailedTaskDoesNotStopRun(t *testing.T) {
	gen := generateFunc(func(_ context.Context, seed models.Record, _ config.RunConfig) ([]models.Record, error) {
		if seed.Instruction == "Q1" {
			return nil, &llm.ServiceError{Op: "generate", Kind: llm.KindTransport, Err: errors.New("connection reset")}
		}
		return []models.Record{{Instruction: seed.Instruction, Input: "i", Output: "o"}}, nil
	})
	reporter := &recordingReporter{}
	saver := &memorySaver{}
	engine := NewEngine(gen, saver, WithLogger(quietLogger), WithReporter(reporter))

	res, err := engine.Run(context.Background(), seedsN(3), testRunConfig(), NewCancelSignal())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 3, res.Completed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, []int{1}, reporter.failed)
	require.Equal(t, 1, saver.calls())
	assert.Len(t, saver.saves[0], 2)
}

func TestEngineRunStartIndex(t *testing.T) {
	var seen sync.Map
	gen := generateFunc(func(_ context.Context, seed models.Record, _ config.RunConfig) ([]models.Record, error) {
		seen.Store(seed.Instruction, true)
		return nil, nil
	})
	reporter := &recordingReporter{}
	cfg := testRunConfig()
	cfg.StartIndex = 2

	res, err := NewEngine(gen, &memorySaver{}, WithLogger(quietLogger), WithReporter(reporter)).
		Run(context.Background(), seedsN(5), cfg, NewCancelSignal())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.Submitted)
	assert.Equal(t, 3, res.Completed)
	for _, q := range []string{"Q0", "Q1"} {
		_, ok := seen.Load(q)
		assert.False(t, ok, "%s before start index must not be submitted", q)
	}
	for _, q := range []string{"Q2", "Q3", "Q4"} {
		_, ok := seen.Load(q)
		assert.True(t, ok, "%s must be submitted", q)
	}

	require.Len(t, reporter.progress, 3)
	last := reporter.progress[2]
	assert.Equal(t, 5, last.Total)
	assert.InDelta(t, 0.6, last.Fraction, 1e-9)
}

func TestEngineRunStartIndexPastEnd(t *testing.T) {
	saver := &memorySaver{}
	cfg := testRunConfig()
	cfg.StartIndex = 10

	res, err := NewEngine(echoGenerator(), saver, WithLogger(quietLogger)).
		Run(context.Background(), seedsN(3), cfg, NewCancelSignal())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Submitted)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, saver.calls())
}

func TestEngineRunSnapshotInterval(t *testing.T) {
	saver := &memorySaver{}
	cfg := testRunConfig()
	cfg.MaxConcurrency = 3

	res, err := NewEngine(echoGenerator(), saver, WithLogger(quietLogger)).
		Run(context.Background(), seedsN(25), cfg, NewCancelSignal())
	require.NoError(t, err)

	require.Equal(t, 3, saver.calls(), "snapshots at 10 and 20 plus the final one")
	assert.Len(t, saver.saves[0], 10)
	assert.Len(t, saver.saves[1], 20)
	assert.Len(t, saver.saves[2], 25)
	assert.Equal(t, 3, res.Snapshots)
}

func TestEngineRunRespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := generateFunc(func(_ context.Context, seed models.Record, _ config.RunConfig) ([]models.Record, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return []models.Record{{Instruction: seed.Instruction, Input: "i", Output: "o"}}, nil
	})
	cfg := testRunConfig()
	cfg.MaxConcurrency = 3

	res, err := NewEngine(gen, &memorySaver{}, WithLogger(quietLogger)).
		Run(context.Background(), seedsN(30), cfg, NewCancelSignal())
	require.NoError(t, err)

	assert.Equal(t, 30, res.Completed)
	assert.LessOrEqual(t, int(peak.Load()), cfg.MaxConcurrency)
	assert.Equal(t, int32(cfg.MaxConcurrency), peak.Load(), "all workers busy when tasks outnumber them")
}

func TestEngineRunCancel(t *testing.T) {
	cancel := NewCancelSignal()
	var calls atomic.Int32
	gen := generateFunc(func(_ context.Context, seed models.Record, _ config.RunConfig) ([]models.Record, error) {
		if calls.Add(1) > 2 {
			<-cancel.Done()
		}
		return []models.Record{{Instruction: seed.Instruction, Input: "i", Output: "o"}}, nil
	})
	reporter := &recordingReporter{onDone: func(p Progress) {
		if p.Completed == 2 {
			cancel.Cancel()
		}
	}}
	saver := &memorySaver{}
	cfg := testRunConfig()
	cfg.MaxConcurrency = 1

	res, err := NewEngine(gen, saver, WithLogger(quietLogger), WithReporter(reporter)).
		Run(context.Background(), seedsN(5), cfg, cancel)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 2, res.Completed)
	assert.Len(t, res.Records, 2)
	assert.Zero(t, saver.calls(), "no final snapshot after cancellation")
	assert.LessOrEqual(t, int(calls.Load()), 3, "tasks picked up after the stop request are skipped")
}

func TestEngineRunCancelledBeforeStart(t *testing.T) {
	cancel := NewCancelSignal()
	cancel.Cancel()
	saver := &memorySaver{}

	res, err := NewEngine(echoGenerator(), saver, WithLogger(quietLogger)).
		Run(context.Background(), seedsN(4), testRunConfig(), cancel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Zero(t, res.Completed)
	assert.Zero(t, saver.calls())
}

func TestEngineRunContextCancel(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	release := make(chan struct{})
	gen := generateFunc(func(ctx context.Context, _ models.Record, _ config.RunConfig) ([]models.Record, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	cancel := NewCancelSignal()

	done := make(chan *Result, 1)
	go func() {
		res, err := NewEngine(gen, &memorySaver{}, WithLogger(quietLogger)).
			Run(ctx, seedsN(3), testRunConfig(), cancel)
		assert.NoError(t, err)
		done <- res
	}()

	stop()
	select {
	case res := <-done:
		assert.Equal(t, OutcomeCancelled, res.Outcome)
		assert.True(t, cancel.Cancelled())
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("run did not stop after context cancellation")
	}
}

func TestEngineRunSnapshotFailureTolerated(t *testing.T) {
	saver := &memorySaver{fail: func(call int) error {
		if call == 0 {
			return store.ErrSnapshotWrite
		}
		return nil
	}}
	collector := metrics.NewCollector()
	cfg := testRunConfig()
	cfg.SnapshotInterval = 1
	cfg.MaxConcurrency = 1

	res, err := NewEngine(echoGenerator(), saver, WithLogger(quietLogger), WithMetrics(collector)).
		Run(context.Background(), seedsN(3), cfg, NewCancelSignal())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 4, saver.calls())
	assert.Equal(t, 3, res.Snapshots)
	assert.Equal(t, int64(1), collector.Count(metrics.CounterSnapshotFailures))
}

func TestEngineRunSnapshotFailureEscalates(t *testing.T) {
	saver := &memorySaver{fail: func(int) error { return store.ErrSnapshotWrite }}
	cfg := testRunConfig()
	cfg.SnapshotInterval = 1
	cfg.MaxConcurrency = 1
	cfg.MaxSnapshotFailures = 2

	res, err := NewEngine(echoGenerator(), saver, WithLogger(quietLogger)).
		Run(context.Background(), seedsN(5), cfg, NewCancelSignal())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrSnapshotWrite)
	require.NotNil(t, res)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 2, saver.calls())
}

func TestEngineRunFinalSnapshotFailure(t *testing.T) {
	saver := &memorySaver{fail: func(int) error { return store.ErrSnapshotWrite }}

	res, err := NewEngine(echoGenerator(), saver, WithLogger(quietLogger)).
		Run(context.Background(), seedsN(2), testRunConfig(), NewCancelSignal())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrSnapshotWrite)
	require.NotNil(t, res)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, 2, res.Completed)
	assert.Len(t, res.Records, 2)
	assert.Zero(t, res.Snapshots)
}

func TestEngineRunRetries(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transport", &llm.ServiceError{Op: "generate", Kind: llm.KindTransport, Err: errors.New("connection reset")}},
		{"rate limited", llm.Classify("generate", errors.New("429 Too Many Requests: Rate limit reached for requests"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			gen := generateFunc(func(_ context.Context, seed models.Record, _ config.RunConfig) ([]models.Record, error) {
				if calls.Add(1) <= 2 {
					return nil, tt.err
				}
				return []models.Record{{Instruction: seed.Instruction, Input: "i", Output: "o"}}, nil
			})
			collector := metrics.NewCollector()
			cfg := testRunConfig()
			cfg.MaxRetries = 3

			res, err := NewEngine(gen, &memorySaver{}, WithLogger(quietLogger), WithMetrics(collector), WithBackOff(zeroBackOff)).
				Run(context.Background(), seedsN(1), cfg, NewCancelSignal())
			require.NoError(t, err)

			assert.Empty(t, res.Failures)
			assert.Len(t, res.Records, 1)
			assert.Equal(t, int32(3), calls.Load())
			assert.Equal(t, int64(2), collector.Count(metrics.CounterRetries))
		})
	}
}

func TestEngineRunRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	gen := generateFunc(func(context.Context, models.Record, config.RunConfig) ([]models.Record, error) {
		calls.Add(1)
		return nil, &llm.ServiceError{Op: "generate", Kind: llm.KindTimeout, Err: context.DeadlineExceeded}
	})
	cfg := testRunConfig()
	cfg.MaxRetries = 2

	res, err := NewEngine(gen, &memorySaver{}, WithLogger(quietLogger), WithBackOff(zeroBackOff)).
		Run(context.Background(), seedsN(1), cfg, NewCancelSignal())
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	var svcErr *llm.ServiceError
	require.ErrorAs(t, res.Failures[0].Err, &svcErr)
	assert.True(t, svcErr.Timeout())
	assert.Equal(t, int32(3), calls.Load())
}

func TestEngineRunFatalNotRetried(t *testing.T) {
	var calls atomic.Int32
	gen := generateFunc(func(context.Context, models.Record, config.RunConfig) ([]models.Record, error) {
		calls.Add(1)
		return nil, &llm.ServiceError{
			Op:   "generate",
			Kind: llm.KindAPI,
			Err:  fmt.Errorf("%w: invalid api key", llm.ErrFatalAPI),
		}
	})
	cfg := testRunConfig()
	cfg.MaxRetries = 5

	res, err := NewEngine(gen, &memorySaver{}, WithLogger(quietLogger), WithBackOff(zeroBackOff)).
		Run(context.Background(), seedsN(1), cfg, NewCancelSignal())
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, llm.ErrFatalAPI)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "completed", OutcomeCompleted.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
	assert.Equal(t, "aborted", OutcomeAborted.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

func TestCancelSignal(t *testing.T) {
	c := NewCancelSignal()
	assert.False(t, c.Cancelled())

	c.Cancel()
	c.Cancel()
	assert.True(t, c.Cancelled())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel not closed after Cancel")
	}
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		elapsed   time.Duration
		fraction  float64
		eta       time.Duration
	}{
		{"first of four", 1, 4, 10 * time.Second, 0.25, 30 * time.Second},
		{"half", 5, 10, 50 * time.Second, 0.5, 50 * time.Second},
		{"done", 4, 4, 40 * time.Second, 1, 0},
		{"nothing completed", 0, 4, time.Second, 0, 0},
		{"no seeds", 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := computeProgress(7, tt.completed, tt.total, tt.elapsed)
			assert.Equal(t, 7, p.Index)
			assert.InDelta(t, tt.fraction, p.Fraction, 1e-9)
			assert.Equal(t, tt.eta, p.ETA)
			assert.Equal(t, tt.elapsed, p.Elapsed)
		})
	}
}

type scriptedSubmitter struct {
	mu      sync.Mutex
	replies map[string]string
	prompts []string
	err     error
	block   bool
}

func (s *scriptedSubmitter) Submit(ctx context.Context, _, _, userPrompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, userPrompt)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	for seed, reply := range s.replies {
		if strings.Contains(userPrompt, "Instruction: "+seed+"\n") {
			return reply, nil
		}
	}
	return "", nil
}

func TestGeneratorGenerate(t *testing.T) {
	sub := &scriptedSubmitter{replies: map[string]string{
		"Q1": "I: Q2\ni: C2\nO: A2",
	}}
	gen := NewGenerator(sub, quietLogger, nil)

	recs, err := gen.Generate(context.Background(), models.Record{Instruction: "Q1", Input: "C1", Output: "A1"}, testRunConfig())
	require.NoError(t, err)
	assert.Equal(t, []models.Record{{Instruction: "Q2", Input: "C2", Output: "A2"}}, recs)
	require.Len(t, sub.prompts, 1)
	assert.Contains(t, sub.prompts[0], "Instruction: Q1\nContext: C1\nOutput: A1")
}

func TestGeneratorFilter(t *testing.T) {
	reply := "I: Tell me about cats\ni: none\nO: I am sorry, the text does not say."
	sub := &scriptedSubmitter{replies: map[string]string{"Q1": reply}}
	collector := metrics.NewCollector()
	gen := NewGenerator(sub, quietLogger, collector)
	seed := models.Record{Instruction: "Q1", Input: "C1", Output: "A1"}

	cfg := testRunConfig()
	cfg.FilterEnabled = true
	recs, err := gen.Generate(context.Background(), seed, cfg)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, int64(1), collector.Count(metrics.CounterEmptyReplies))

	cfg.FilterEnabled = false
	recs, err = gen.Generate(context.Background(), seed, cfg)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGeneratorTimeout(t *testing.T) {
	gen := NewGenerator(&scriptedSubmitter{block: true}, quietLogger, nil)
	cfg := testRunConfig()
	cfg.RequestTimeout = 20 * time.Millisecond

	_, err := gen.Generate(context.Background(), models.Record{Instruction: "Q"}, cfg)
	require.Error(t, err)
	var svcErr *llm.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.True(t, svcErr.Timeout())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGeneratorSubmitError(t *testing.T) {
	gen := NewGenerator(&scriptedSubmitter{err: errors.New("dial tcp: connection refused")}, quietLogger, nil)

	_, err := gen.Generate(context.Background(), models.Record{Instruction: "Q"}, testRunConfig())
	var svcErr *llm.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, llm.KindTransport, svcErr.Kind)
	assert.Equal(t, "generate", svcErr.Op)
}

func writeSeeds(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "input.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAugmentServiceRun(t *testing.T) {
	dir := t.TempDir()
	cfg := testRunConfig()
	cfg.InputPath = writeSeeds(t, dir, `[{"instruction":"Q1","input":"C1","output":"A1"}]`)
	cfg.OutputPath = filepath.Join(dir, "output.json")

	sub := &scriptedSubmitter{replies: map[string]string{"Q1": "I: Q2\ni: C2\nO: A2"}}
	svc := NewAugmentService(sub, WithServiceLogger(quietLogger), WithServiceMetrics(metrics.NewCollector()))

	res, err := svc.Run(context.Background(), cfg, NewCancelSignal())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Len(t, res.RunID, 8)

	got, err := store.LoadSeeds(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []models.Record{{Instruction: "Q2", Input: "C2", Output: "A2"}}, got)

	next := store.NewSnapshotter(cfg.OutputPath)
	require.NoError(t, next.Lock(), "output lock released after run")
	require.NoError(t, next.Unlock())
}

func TestAugmentServiceRunFatalSetup(t *testing.T) {
	dir := t.TempDir()
	svc := NewAugmentService(&scriptedSubmitter{}, WithServiceLogger(quietLogger))

	t.Run("invalid config", func(t *testing.T) {
		cfg := testRunConfig()
		cfg.NumVariations = 0
		_, err := svc.Run(context.Background(), cfg, NewCancelSignal())
		assert.ErrorContains(t, err, "num_variations")
	})

	t.Run("missing seeds", func(t *testing.T) {
		cfg := testRunConfig()
		cfg.InputPath = filepath.Join(dir, "missing.json")
		cfg.OutputPath = filepath.Join(dir, "out.json")
		_, err := svc.Run(context.Background(), cfg, NewCancelSignal())
		assert.ErrorIs(t, err, store.ErrSeedLoad)
	})

	t.Run("malformed seeds", func(t *testing.T) {
		cfg := testRunConfig()
		cfg.InputPath = writeSeeds(t, dir, `{"instruction":`)
		cfg.OutputPath = filepath.Join(dir, "out.json")
		_, err := svc.Run(context.Background(), cfg, NewCancelSignal())
		assert.ErrorIs(t, err, store.ErrSeedLoad)
	})

	t.Run("output directory missing", func(t *testing.T) {
		cfg := testRunConfig()
		cfg.InputPath = writeSeeds(t, dir, `[]`)
		cfg.OutputPath = filepath.Join(dir, "nope", "out.json")
		_, err := svc.Run(context.Background(), cfg, NewCancelSignal())
		assert.ErrorIs(t, err, store.ErrOutputUnwritable)
	})

	t.Run("output is a directory", func(t *testing.T) {
		cfg := testRunConfig()
		cfg.InputPath = writeSeeds(t, dir, `[{"instruction":"Q1","input":"C1","output":"A1"}]`)
		cfg.OutputPath = filepath.Join(dir, "outdir")
		require.NoError(t, os.Mkdir(cfg.OutputPath, 0o755))

		sub := &scriptedSubmitter{}
		_, err := NewAugmentService(sub, WithServiceLogger(quietLogger)).Run(context.Background(), cfg, NewCancelSignal())
		assert.ErrorIs(t, err, store.ErrOutputUnwritable)
		assert.Empty(t, sub.prompts, "no generation call before the output is known to be writable")
	})

	t.Run("output locked", func(t *testing.T) {
		cfg := testRunConfig()
		cfg.InputPath = writeSeeds(t, dir, `[]`)
		cfg.OutputPath = filepath.Join(dir, "locked.json")
		other := store.NewSnapshotter(cfg.OutputPath)
		require.NoError(t, other.Lock())
		defer other.Unlock()

		_, err := svc.Run(context.Background(), cfg, NewCancelSignal())
		assert.ErrorIs(t, err, store.ErrOutputLocked)
	})
}
