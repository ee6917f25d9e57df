// Package service runs seed augmentation: per-seed generation fanned out over a
// bounded worker pool, with results collected and snapshotted on one goroutine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raphaelgruber/seedforge/internal/config"
	"github.com/raphaelgruber/seedforge/internal/llm"
	"github.com/raphaelgruber/seedforge/internal/metrics"
	"github.com/raphaelgruber/seedforge/internal/models"
)

// Outcome tells how a run ended.
type Outcome int

const (
	// OutcomeCompleted means every submitted task was collected.
	OutcomeCompleted Outcome = iota
	// OutcomeCancelled means the run stopped early on request.
	OutcomeCancelled
	// OutcomeAborted means the output could not be persisted; it comes with an error.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeAborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RecordGenerator produces records for one seed.
type RecordGenerator interface {
	Generate(ctx context.Context, seed models.Record, cfg config.RunConfig) ([]models.Record, error)
}

// SnapshotSaver persists the full accumulated record list.
type SnapshotSaver interface {
	Save(records []models.Record) error
}

// TaskFailure records a task that contributed no records because it failed.
type TaskFailure struct {
	Index int
	Err   error
}

// Result summarizes a run.
type Result struct {
	RunID   string
	Outcome Outcome
	Records []models.Record

	// Total is the full seed count; Submitted excludes seeds before StartIndex.
	Total     int
	Submitted int
	Completed int
	Failures  []TaskFailure
	Snapshots int
	Elapsed   time.Duration
}

type taskResult struct {
	task    models.GenerationTask
	records []models.Record
	err     error
}

// Engine dispatches generation tasks and accumulates their records.
type Engine struct {
	generator  RecordGenerator
	saver      SnapshotSaver
	reporter   Reporter
	logger     *slog.Logger
	collector  *metrics.Collector
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) EngineOption {
	return func(e *Engine) {
		e.collector = c
	}
}

// WithBackOff overrides the retry delay policy (useful for tests).
func WithBackOff(fn func() backoff.BackOff) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newBackOff = fn
		}
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// NewEngine creates an engine that generates with gen and persists through saver.
func NewEngine(gen RecordGenerator, saver SnapshotSaver, opts ...EngineOption) *Engine {
	e := &Engine{
		generator:  gen,
		saver:      saver,
		reporter:   nopReporter{},
		logger:     slog.Default(),
		newBackOff: defaultBackOff,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run submits one task per seed from cfg.StartIndex onward and collects results
// until all are in or cancel is signalled. ctx bounds the generation calls; when
// ctx ends the run is treated as cancelled.
//
// Only the calling goroutine touches the accumulated records and the snapshot
// saver. A failed task is recorded in Result.Failures and the run continues.
// On cancellation no final snapshot is written and Result.Outcome is
// OutcomeCancelled. The returned error is non-nil only when the run could not
// persist its output; the Result is still returned in that case.
func (e *Engine) Run(ctx context.Context, seeds []models.Record, cfg config.RunConfig, cancel *CancelSignal) (*Result, error) {
	if cancel == nil {
		cancel = NewCancelSignal()
	}

	tasks := models.Tasks(seeds, cfg.StartIndex)
	result := &Result{
		Outcome:   OutcomeCompleted,
		Records:   []models.Record{},
		Total:     len(seeds),
		Submitted: len(tasks),
	}
	start := e.now()

	interval := cfg.SnapshotInterval
	if interval < 1 {
		interval = config.DefaultSnapshotInterval
	}
	workers := cfg.MaxConcurrency
	if workers < 1 {
		workers = 1
	}

	e.logger.Info("starting augmentation",
		"seeds", len(seeds),
		"start_index", cfg.StartIndex,
		"tasks", len(tasks),
		"concurrency", workers,
		"model", cfg.Model)

	// stop is closed when the collector returns so the feeder exits.
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			cancel.Cancel()
		case <-stop:
		}
	}()

	// Unbuffered: a task is only handed over once a worker is free to start it.
	taskCh := make(chan models.GenerationTask)
	// Buffered for every task so abandoned workers never block on send.
	results := make(chan taskResult, len(tasks))

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
				if e.collector != nil {
					e.collector.Add(metrics.CounterSubmitted, 1)
				}
			case <-cancel.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	for i := 0; i < workers; i++ {
		go func(workerID int) {
			for task := range taskCh {
				if cancel.Cancelled() {
					continue
				}
				e.logger.Debug("generating", "worker", workerID, "index", task.Index)
				records, err := e.attempt(ctx, task, cfg, cancel)
				results <- taskResult{task: task, records: records, err: err}
			}
		}(i)
	}

	snapshotFailures := 0
	for result.Completed < len(tasks) {
		var res taskResult
		select {
		case <-cancel.Done():
			return e.finishCancelled(result, start), nil
		case res = <-results:
		}
		if cancel.Cancelled() {
			return e.finishCancelled(result, start), nil
		}

		result.Completed++
		if res.err != nil {
			result.Failures = append(result.Failures, TaskFailure{Index: res.task.Index, Err: res.err})
			e.logTaskFailure(res.task.Index, res.err)
			e.reporter.TaskFailed(res.task.Index, res.err)
			if e.collector != nil {
				e.collector.Add(metrics.CounterFailed, 1)
			}
		} else {
			result.Records = append(result.Records, res.records...)
			if e.collector != nil {
				e.collector.Add(metrics.CounterSucceeded, 1)
				e.collector.Add(metrics.CounterRecords, int64(len(res.records)))
			}
		}

		e.reporter.TaskCompleted(computeProgress(res.task.Index, result.Completed, result.Total, e.now().Sub(start)))

		if result.Completed%interval == 0 {
			if err := e.snapshot(result); err != nil {
				snapshotFailures++
				if cfg.MaxSnapshotFailures > 0 && snapshotFailures >= cfg.MaxSnapshotFailures {
					cancel.Cancel()
					result.Outcome = OutcomeAborted
					result.Elapsed = e.now().Sub(start)
					return result, fmt.Errorf("giving up after %d consecutive snapshot failures: %w", snapshotFailures, err)
				}
			} else {
				snapshotFailures = 0
			}
		}
	}

	result.Elapsed = e.now().Sub(start)
	if err := e.snapshot(result); err != nil {
		result.Outcome = OutcomeAborted
		return result, fmt.Errorf("final snapshot: %w", err)
	}

	e.logger.Info("augmentation complete",
		"completed", result.Completed,
		"failed", len(result.Failures),
		"records", len(result.Records),
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// attempt runs one task, retrying retryable service errors up to cfg.MaxRetries.
func (e *Engine) attempt(ctx context.Context, task models.GenerationTask, cfg config.RunConfig, cancel *CancelSignal) ([]models.Record, error) {
	if cfg.MaxRetries <= 0 {
		return e.generator.Generate(ctx, task.Seed, cfg)
	}

	var records []models.Record
	op := func() error {
		recs, err := e.generator.Generate(ctx, task.Seed, cfg)
		if err == nil {
			records = recs
			return nil
		}
		var svcErr *llm.ServiceError
		if cancel.Cancelled() || (errors.As(err, &svcErr) && !svcErr.Retryable()) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), uint64(cfg.MaxRetries)), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		e.logger.Warn("retrying generation", "index", task.Index, "wait", wait, "error", err)
		if e.collector != nil {
			e.collector.Add(metrics.CounterRetries, 1)
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// snapshot persists a copy of the accumulated records. Failures are logged and
// returned; the caller decides whether to escalate.
func (e *Engine) snapshot(result *Result) error {
	records := make([]models.Record, len(result.Records))
	copy(records, result.Records)

	start := e.now()
	err := e.saver.Save(records)
	if e.collector != nil {
		e.collector.RecordTiming(metrics.OpSnapshot, e.now().Sub(start))
	}
	if err != nil {
		e.logger.Warn("snapshot failed", "records", len(records), "completed", result.Completed, "error", err)
		if e.collector != nil {
			e.collector.Add(metrics.CounterSnapshotFailures, 1)
		}
		return err
	}

	result.Snapshots++
	e.logger.Debug("snapshot written", "records", len(records), "completed", result.Completed)
	return nil
}

func (e *Engine) finishCancelled(result *Result, start time.Time) *Result {
	result.Outcome = OutcomeCancelled
	result.Elapsed = e.now().Sub(start)
	e.logger.Info("augmentation cancelled",
		"completed", result.Completed,
		"submitted", result.Submitted,
		"records", len(result.Records))
	return result
}

func (e *Engine) logTaskFailure(index int, err error) {
	if errors.Is(err, llm.ErrFatalAPI) {
		e.logger.Error("task failed", "index", index, "error", err)
		return
	}
	e.logger.Warn("task failed", "index", index, "error", err)
}
