// Package config loads environment settings, run parameters and logging for seedforge.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Provider names a backend for the generation capability.
type Provider string

// Supported providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderBedrock   Provider = "bedrock"
	ProviderGemini    Provider = "gemini"
)

// Config holds process-wide settings: which provider to talk to, how to reach it,
// and where logs go. Per-run parameters live in RunConfig.
type Config struct {
	Provider Provider

	// OpenAI (and OpenAI-compatible endpoints)
	OpenAIAPIKey  string
	OpenAIBaseURL string

	AnthropicAPIKey string

	OllamaHost string

	// Bedrock uses the default AWS credential chain
	AWSRegion string

	GeminiAPIKey string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables. A .env file in the working
// directory is applied first without overriding variables already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Provider: Provider(strings.ToLower(getEnv("SEEDFORGE_PROVIDER", string(ProviderOpenAI)))),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		OllamaHost: getEnv("OLLAMA_HOST", "http://localhost:11434"),

		AWSRegion: getEnv("AWS_REGION", "us-east-1"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		LogFile:  getEnv("SEEDFORGE_LOG_FILE", "/tmp/seedforge.log"),
		LogLevel: parseLogLevel(getEnv("SEEDFORGE_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
