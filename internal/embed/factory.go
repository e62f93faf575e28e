package embed

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docqa/internal/config"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOpenAI uses the OpenAI embeddings API (default).
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings, no network.
	ProviderStatic ProviderType = "static"
)

// NewGuard builds the guard protecting embedding calls from cfg.
func NewGuard(cfg config.EmbeddingsConfig, res config.ResilienceConfig) *docerrors.Guard {
	return docerrors.NewGuard(docerrors.GuardConfig{
		Name:    "embedding provider",
		Code:    docerrors.ErrCodeEmbeddingFailed,
		Timeout: cfg.Timeout,
		Retry: docerrors.RetryConfig{
			MaxRetries:   res.MaxRetries,
			InitialDelay: res.InitialDelay,
			MaxDelay:     res.MaxDelay,
			Multiplier:   2.0,
			Jitter:       true,
		},
		MaxFailures:       res.BreakerFailures,
		ResetTimeout:      res.BreakerReset,
		RequestsPerSecond: res.RequestsPerSecond,
	})
}

// NewEmbedder creates the embedder selected by cfg.Provider.
// Network providers are wrapped in a guard built from res.
func NewEmbedder(cfg config.EmbeddingsConfig, res config.ResilienceConfig) (Embedder, error) {
	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderOpenAI, "":
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		}, NewGuard(cfg, res))
		if err != nil {
			return nil, err
		}
		return e, nil

	case ProviderOllama:
		return NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		}, NewGuard(cfg, res)), nil

	case ProviderStatic:
		return NewStaticEmbedder(cfg.Dimensions), nil

	default:
		return nil, docerrors.ConfigError(fmt.Sprintf("unknown embeddings provider %q", cfg.Provider), nil).
			WithSuggestion("Use one of: openai, ollama, static.")
	}
}
