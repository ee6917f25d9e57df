package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults for a run, matching the behaviour operators are used to.
const (
	DefaultModel            = "gpt-3.5-turbo"
	DefaultInputPath        = "input.json"
	DefaultOutputPath       = "output.json"
	DefaultNumVariations    = 5
	DefaultMaxConcurrency   = 3
	DefaultSnapshotInterval = 10
	DefaultRequestTimeout   = 300 * time.Second
)

// RunConfig is the fully resolved parameter set for one augmentation run.
// It is built once by the caller and not mutated while the run is in progress.
type RunConfig struct {
	Model           string `yaml:"model" toml:"model"`
	InputPath       string `yaml:"input" toml:"input"`
	OutputPath      string `yaml:"output" toml:"output"`
	NumVariations   int    `yaml:"num_variations" toml:"num_variations"`
	StartIndex      int    `yaml:"start_index" toml:"start_index"`
	MaxConcurrency  int    `yaml:"max_concurrency" toml:"max_concurrency"`
	PromptDirective string `yaml:"prompt_directive" toml:"prompt_directive"`
	FilterEnabled   bool   `yaml:"filter" toml:"filter"`

	// SnapshotInterval is the number of completed tasks between snapshot writes.
	SnapshotInterval int `yaml:"snapshot_interval" toml:"snapshot_interval"`

	// RequestTimeout bounds a single generation call. Files spell it as a
	// duration string ("90s", "5m").
	RequestTimeout time.Duration `yaml:"-" toml:"-"`

	// MaxRetries is how many extra attempts a transient failure gets. Zero disables retry.
	MaxRetries int `yaml:"max_retries" toml:"max_retries"`

	// MaxSnapshotFailures stops the run after that many consecutive failed snapshot
	// writes. Zero never stops.
	MaxSnapshotFailures int `yaml:"max_snapshot_failures" toml:"max_snapshot_failures"`
}

// runConfigFile is the on-disk shape of a RunConfig.
type runConfigFile struct {
	RunConfig      `yaml:",inline"`
	RequestTimeout string `yaml:"request_timeout" toml:"request_timeout"`
}

// DefaultRunConfig returns a RunConfig populated with defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Model:            DefaultModel,
		InputPath:        DefaultInputPath,
		OutputPath:       DefaultOutputPath,
		NumVariations:    DefaultNumVariations,
		MaxConcurrency:   DefaultMaxConcurrency,
		FilterEnabled:    true,
		SnapshotInterval: DefaultSnapshotInterval,
		RequestTimeout:   DefaultRequestTimeout,
	}
}

// LoadRunConfig decodes a YAML or TOML file over the defaults. The format is chosen
// by extension (.yaml, .yml, .toml). An empty path returns the defaults.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read run config: %w", err)
	}

	file := runConfigFile{RunConfig: cfg}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("parse run config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("parse run config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported run config format: %s", filepath.Ext(path))
	}

	cfg = file.RunConfig
	if file.RequestTimeout != "" {
		timeout, err := time.ParseDuration(file.RequestTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = timeout
	}

	return cfg, nil
}

// Validate checks that the run parameters are usable.
func (c RunConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if strings.TrimSpace(c.InputPath) == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if c.NumVariations < 1 {
		errs = append(errs, fmt.Errorf("num_variations must be at least 1, got %d", c.NumVariations))
	}
	if c.StartIndex < 0 {
		errs = append(errs, fmt.Errorf("start_index must not be negative, got %d", c.StartIndex))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency))
	}
	if c.SnapshotInterval < 1 {
		errs = append(errs, fmt.Errorf("snapshot_interval must be at least 1, got %d", c.SnapshotInterval))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.MaxSnapshotFailures < 0 {
		errs = append(errs, fmt.Errorf("max_snapshot_failures must not be negative, got %d", c.MaxSnapshotFailures))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid run config: %w", errors.Join(errs...))
	}
	return nil
}
