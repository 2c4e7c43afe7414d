package ai_fx

import (
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/fx"

	"cicerone/pkg/utils"
)

var Module = fx.Provide(
	provideCompletionClient,
	provideSpeechClient,
	provideEmbeddingClient)

// CompletionConfig holds configuration for text generation clients
type CompletionConfig struct {
	Provider string
	APIKey   string
	Model    string
}

func provideCompletionClient() (utils.CompletionClientInterface, error) {
	config, err := getCompletionConfig()
	if err != nil {
		return nil, err
	}

	log.Printf("Initializing %s completion client with model: %s", config.Provider, config.Model)
	return utils.NewCompletionClient(config.Provider, config.APIKey, config.Model)
}

func provideSpeechClient() (utils.SpeechClientInterface, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for speech synthesis")
	}

	model := getEnvWithDefault("TTS_MODEL", "tts-1")
	return utils.NewOpenAISpeechClient(apiKey, model), nil
}

func provideEmbeddingClient() (utils.EmbeddingClientInterface, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for embeddings")
	}

	model := getEnvWithDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	return utils.NewOpenAIEmbeddingClient(apiKey, model), nil
}

// getCompletionConfig reads configuration from environment variables
func getCompletionConfig() (CompletionConfig, error) {
	provider := strings.ToLower(getEnvWithDefault("COMPLETION_PROVIDER", "gemini"))

	var apiKey, model string
	switch provider {
	case "openai":
		apiKey = os.Getenv("OPENAI_API_KEY")
		model = getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini")
	case "gemini":
		apiKey = os.Getenv("GEMINI_API_KEY")
		model = getEnvWithDefault("GEMINI_MODEL", "gemini-1.5-flash")
	default:
		return CompletionConfig{}, fmt.Errorf("unsupported completion provider: %s. Use 'openai' or 'gemini'", provider)
	}
	if apiKey == "" {
		return CompletionConfig{}, fmt.Errorf("api key for completion provider %q is missing", provider)
	}

	return CompletionConfig{Provider: provider, APIKey: apiKey, Model: model}, nil
}

// getEnvWithDefault returns environment variable or default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
