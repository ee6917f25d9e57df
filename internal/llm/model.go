// Package llm provides the text-generation capability behind seed augmentation.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/seedforge/internal/config"
	"github.com/raphaelgruber/seedforge/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"
)

// Submitter is the "submit prompt, receive text" capability the pipeline depends on.
type Submitter interface {
	Submit(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Completion is a single reply from a backend.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// backend is one provider SDK behind Model.
type backend interface {
	complete(ctx context.Context, model, systemPrompt, userPrompt string) (Completion, error)
}

// Model submits prompts to the configured provider.
type Model struct {
	backend   backend
	provider  config.Provider
	modelName string
	collector *metrics.Collector
}

// Option customizes a Model.
type Option func(*Model)

// WithCollector records latency and token usage for every call.
func WithCollector(c *metrics.Collector) Option {
	return func(m *Model) {
		m.collector = c
	}
}

// NewModel creates a model client for cfg.Provider. defaultModel is used when a
// call does not name a model.
func NewModel(ctx context.Context, cfg config.Config, defaultModel string, opts ...Option) (*Model, error) {
	var b backend

	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		token := cfg.OpenAIAPIKey
		if token == "" {
			// OpenAI-compatible local servers accept any token
			token = "unused"
		}
		openaiOpts := []openai.Option{
			openai.WithToken(token),
			openai.WithModel(defaultModel),
		}
		if cfg.OpenAIBaseURL != "" {
			openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		model, err := openai.New(openaiOpts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		b = &langchainBackend{llm: model}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(defaultModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		b = &langchainBackend{llm: model}

	case config.ProviderOllama:
		model, err := ollama.New(
			ollama.WithModel(defaultModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		b = &langchainBackend{llm: model}

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err := bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(defaultModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}
		b = &langchainBackend{llm: model}

	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("Gemini API key required")
		}
		cli, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		b = &geminiBackend{cli: cli}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	slog.Debug("generation provider ready", "provider", cfg.Provider, "model", defaultModel)
	return newModel(b, cfg.Provider, defaultModel, opts...), nil
}

func newModel(b backend, provider config.Provider, defaultModel string, opts ...Option) *Model {
	m := &Model{
		backend:   b,
		provider:  provider,
		modelName: defaultModel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit sends one system + user prompt pair and returns the reply text.
// Every failure is returned as a *ServiceError.
func (m *Model) Submit(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if model == "" {
		model = m.modelName
	}

	start := time.Now()
	completion, err := m.backend.complete(ctx, model, systemPrompt, userPrompt)
	duration := time.Since(start)

	if err == nil && completion.Text == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		return "", Classify("submit", err)
	}

	if m.collector != nil {
		m.collector.RecordLLMUsage(metrics.OpLLMGenerate, duration, completion.InputTokens, completion.OutputTokens)
	}
	return completion.Text, nil
}

// Model returns the default model name.
func (m *Model) Model() string {
	return m.modelName
}

// Provider returns the backing provider.
func (m *Model) Provider() config.Provider {
	return m.provider
}

type langchainBackend struct {
	llm llms.Model
}

func (b *langchainBackend) complete(ctx context.Context, model, systemPrompt, userPrompt string) (Completion, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := b.llm.GenerateContent(ctx, messages, llms.WithModel(model))
	if err != nil {
		return Completion{}, fmt.Errorf("generate with system: %w", err)
	}
	if len(response.Choices) == 0 {
		return Completion{}, fmt.Errorf("no response choices: %w", ErrEmptyResponse)
	}

	choice := response.Choices[0]
	in, out := tokenCounts(choice.GenerationInfo)
	return Completion{Text: choice.Content, InputTokens: in, OutputTokens: out}, nil
}

// tokenCounts reads token usage from langchaingo generation info. Providers use
// different key names.
func tokenCounts(info map[string]any) (int64, int64) {
	return firstInt(info, "PromptTokens", "InputTokens", "prompt_eval_count"),
		firstInt(info, "CompletionTokens", "OutputTokens", "eval_count")
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

type geminiBackend struct {
	cli *genai.Client
}

func (b *geminiBackend) complete(ctx context.Context, model, systemPrompt, userPrompt string) (Completion, error) {
	resp, err := b.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: userPrompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		},
	)
	if err != nil {
		return Completion{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Completion{}, fmt.Errorf("gemini: no candidates: %w", ErrEmptyResponse)
	}

	var c Completion
	for _, part := range resp.Candidates[0].Content.Parts {
		c.Text += part.Text
	}
	if resp.UsageMetadata != nil {
		c.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		c.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return c, nil
}
