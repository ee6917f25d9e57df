package service

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/seedforge/internal/config"
	"github.com/raphaelgruber/seedforge/internal/llm"
	"github.com/raphaelgruber/seedforge/internal/metrics"
	"github.com/raphaelgruber/seedforge/internal/models"
	"github.com/raphaelgruber/seedforge/internal/parser"
	"github.com/raphaelgruber/seedforge/internal/prompt"
)

// Generator turns one seed into zero or more generated records with a single
// call to the generation capability. It never retries.
type Generator struct {
	submitter llm.Submitter
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewGenerator creates a generator over submitter. logger and collector may be nil.
func NewGenerator(submitter llm.Submitter, logger *slog.Logger, collector *metrics.Collector) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		submitter: submitter,
		logger:    logger,
		collector: collector,
	}
}

// Generate builds the prompt for seed, submits it and parses the reply.
// Failures of the call are returned as *llm.ServiceError; a reply that yields no
// records is not an error.
func (g *Generator) Generate(ctx context.Context, seed models.Record, cfg config.RunConfig) ([]models.Record, error) {
	userPrompt := prompt.Build(seed, cfg.NumVariations, cfg.PromptDirective)

	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}

	reply, err := g.submitter.Submit(ctx, cfg.Model, prompt.System, userPrompt)
	if err != nil {
		return nil, llm.Classify("generate", err)
	}

	g.logger.Debug("model reply", "model", cfg.Model, "reply", reply)

	records := parser.Parse(reply, cfg.FilterEnabled)
	if len(records) == 0 {
		g.logger.Info("no records recovered from reply", "model", cfg.Model, "reply_len", len(reply))
		if g.collector != nil {
			g.collector.Add(metrics.CounterEmptyReplies, 1)
		}
	}
	return records, nil
}
