package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raphaelgruber/seedforge/internal/config"
	"github.com/raphaelgruber/seedforge/internal/llm"
	"github.com/raphaelgruber/seedforge/internal/metrics"
	"github.com/raphaelgruber/seedforge/internal/service"
)

// runFlags holds the flag values of the run command. Only flags set on the
// command line override the run config file.
type runFlags struct {
	configPath          string
	model               string
	input               string
	output              string
	numVariations       int
	startIndex          int
	maxWorkers          int
	prompt              string
	filter              bool
	snapshotInterval    int
	timeout             time.Duration
	retries             int
	maxSnapshotFailures int
}

var runOpts *runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate new records from a seed file",
	Long: `Generate new (instruction, input, output) records from every seed in the
input file and write them to the output file.

The output file is rewritten every --snapshot-interval completed seeds and
once more at the end. Ctrl+C stops the run after the current replies are
collected; the last snapshot stays on disk.

Examples:
  seedforge run
  seedforge run --input seeds.json --output out.json --num-variations 10
  seedforge run --config run.yaml --start-index 120
  seedforge run --model llama3 --max-workers 8 --filter=false`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runOpts = bindRunFlags(runCmd.Flags())
}

func bindRunFlags(fs *pflag.FlagSet) *runFlags {
	def := config.DefaultRunConfig()
	f := &runFlags{}
	fs.StringVarP(&f.configPath, "config", "c", "", "run config file (.yaml, .yml or .toml)")
	fs.StringVarP(&f.model, "model", "m", def.Model, "model name")
	fs.StringVarP(&f.input, "input", "i", def.InputPath, "seed file (JSON array)")
	fs.StringVarP(&f.output, "output", "o", def.OutputPath, "output file")
	fs.IntVarP(&f.numVariations, "num-variations", "n", def.NumVariations, "records to request per seed")
	fs.IntVar(&f.startIndex, "start-index", def.StartIndex, "skip seeds before this index")
	fs.IntVarP(&f.maxWorkers, "max-workers", "w", def.MaxConcurrency, "concurrent generation calls")
	fs.StringVarP(&f.prompt, "prompt", "p", def.PromptDirective, "extra directive added to every prompt")
	fs.BoolVar(&f.filter, "filter", def.FilterEnabled, "drop records containing refusal phrases")
	fs.IntVar(&f.snapshotInterval, "snapshot-interval", def.SnapshotInterval, "completed seeds between output rewrites")
	fs.DurationVar(&f.timeout, "timeout", def.RequestTimeout, "timeout per generation call")
	fs.IntVar(&f.retries, "retries", def.MaxRetries, "extra attempts for transient failures")
	fs.IntVar(&f.maxSnapshotFailures, "max-snapshot-failures", def.MaxSnapshotFailures, "stop after this many consecutive failed snapshots (0 never stops)")
	return f
}

// resolve loads the run config file, if any, and applies flags set on fs.
func (f *runFlags) resolve(fs *pflag.FlagSet) (config.RunConfig, error) {
	rc := config.DefaultRunConfig()
	if f.configPath != "" {
		var err error
		rc, err = config.LoadRunConfig(f.configPath)
		if err != nil {
			return rc, err
		}
	}

	if fs.Changed("model") {
		rc.Model = f.model
	}
	if fs.Changed("input") {
		rc.InputPath = f.input
	}
	if fs.Changed("output") {
		rc.OutputPath = f.output
	}
	if fs.Changed("num-variations") {
		rc.NumVariations = f.numVariations
	}
	if fs.Changed("start-index") {
		rc.StartIndex = f.startIndex
	}
	if fs.Changed("max-workers") {
		rc.MaxConcurrency = f.maxWorkers
	}
	if fs.Changed("prompt") {
		rc.PromptDirective = f.prompt
	}
	if fs.Changed("filter") {
		rc.FilterEnabled = f.filter
	}
	if fs.Changed("snapshot-interval") {
		rc.SnapshotInterval = f.snapshotInterval
	}
	if fs.Changed("timeout") {
		rc.RequestTimeout = f.timeout
	}
	if fs.Changed("retries") {
		rc.MaxRetries = f.retries
	}
	if fs.Changed("max-snapshot-failures") {
		rc.MaxSnapshotFailures = f.maxSnapshotFailures
	}

	return rc, rc.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	runCfg, err := runOpts.resolve(cmd.Flags())
	if err != nil {
		return err
	}

	ctx := context.Background()
	collector := metrics.NewCollector()

	model, err := llm.NewModel(ctx, cfg, runCfg.Model, llm.WithCollector(collector))
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}

	cancel := service.NewCancelSignal()
	stopSignals := notifyCancel(cancel)
	defer stopSignals()

	out := cmd.OutOrStdout()
	reporter := newProgressReporter(out)
	svc := service.NewAugmentService(model,
		service.WithServiceLogger(logger),
		service.WithServiceReporter(reporter),
		service.WithServiceMetrics(collector),
	)

	res, err := svc.Run(ctx, runCfg, cancel)
	if res != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderSummary(res, collector.Snapshot()))
	}
	if err != nil {
		if res != nil {
			fmt.Fprintln(out, reporter.failure(fmt.Sprintf("✗ Run stopped: %v", err)))
		}
		return err
	}

	fmt.Fprintln(out, finalMessage(reporter, res, runCfg.OutputPath))
	return nil
}

// notifyCancel sets cancel on SIGINT or SIGTERM until the returned func is called.
func notifyCancel(cancel *service.CancelSignal) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("stop requested", "signal", sig.String())
			cancel.Cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func finalMessage(r *progressReporter, res *service.Result, outputPath string) string {
	if res.Outcome == service.OutcomeCancelled {
		return r.hint(fmt.Sprintf("Processing stopped after %d of %d items. %s holds the last periodic snapshot.",
			res.Completed, res.Submitted, outputPath))
	}
	return r.success("Processing completed. Results saved to " + outputPath)
}
