package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/raphaelgruber/seedforge/internal/config"
	"github.com/raphaelgruber/seedforge/internal/llm"
	"github.com/raphaelgruber/seedforge/internal/metrics"
	"github.com/raphaelgruber/seedforge/internal/store"
)

// AugmentService loads seeds, runs the dispatch engine and persists the output.
type AugmentService struct {
	submitter llm.Submitter
	collector *metrics.Collector
	logger    *slog.Logger
	reporter  Reporter
	engineOpt []EngineOption
}

// AugmentOption customizes an AugmentService.
type AugmentOption func(*AugmentService)

// WithServiceLogger sets the base logger; each run tags it with a run id.
func WithServiceLogger(l *slog.Logger) AugmentOption {
	return func(s *AugmentService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceReporter sets the progress reporter for runs.
func WithServiceReporter(r Reporter) AugmentOption {
	return func(s *AugmentService) {
		s.reporter = r
	}
}

// WithServiceMetrics sets the metrics collector shared by generator and engine.
func WithServiceMetrics(c *metrics.Collector) AugmentOption {
	return func(s *AugmentService) {
		s.collector = c
	}
}

// WithEngineOptions passes extra options to every engine the service creates.
func WithEngineOptions(opts ...EngineOption) AugmentOption {
	return func(s *AugmentService) {
		s.engineOpt = append(s.engineOpt, opts...)
	}
}

// NewAugmentService creates a service that generates through submitter.
func NewAugmentService(submitter llm.Submitter, opts ...AugmentOption) *AugmentService {
	s := &AugmentService{
		submitter: submitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one augmentation run described by cfg.
// Invalid configuration, unreadable seeds and an unusable output location are
// fatal and reported before any task is submitted.
func (s *AugmentService) Run(ctx context.Context, cfg config.RunConfig, cancel *CancelSignal) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seeds, err := store.LoadSeeds(cfg.InputPath)
	if err != nil {
		return nil, err
	}

	snap := store.NewSnapshotter(cfg.OutputPath)
	if err := snap.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := snap.Unlock(); err != nil {
			s.logger.Warn("failed to release output lock", "path", snap.Path(), "error", err)
		}
	}()

	runID := uuid.New().String()[:8]
	logger := s.logger.With("run_id", runID)
	logger.Info("run configured",
		"input", cfg.InputPath,
		"output", cfg.OutputPath,
		"num_variations", cfg.NumVariations,
		"filter", cfg.FilterEnabled)

	gen := NewGenerator(s.submitter, logger, s.collector)
	opts := []EngineOption{WithLogger(logger), WithMetrics(s.collector)}
	if s.reporter != nil {
		opts = append(opts, WithReporter(s.reporter))
	}
	opts = append(opts, s.engineOpt...)

	result, err := NewEngine(gen, snap, opts...).Run(ctx, seeds, cfg, cancel)
	if result != nil {
		result.RunID = runID
	}
	if err != nil {
		return result, fmt.Errorf("write %s: %w", cfg.OutputPath, err)
	}
	return result, nil
}
