package llm

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/docqa/internal/config"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// NewGuard builds the guard protecting completion calls.
func NewGuard(cfg config.CompletionConfig, res config.ResilienceConfig) *docerrors.Guard {
	return docerrors.NewGuard(docerrors.GuardConfig{
		Name:    "completion provider",
		Code:    docerrors.ErrCodeCompletionFailed,
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

// NewCompleter creates the completer selected by cfg.Provider.
func NewCompleter(cfg config.CompletionConfig, res config.ResilienceConfig) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		c, err := NewOpenAICompleter(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, NewGuard(cfg, res))
		if err != nil {
			return nil, err
		}
		return c, nil
	case "extractive":
		return ExtractiveCompleter{}, nil
	default:
		return nil, docerrors.ConfigError(fmt.Sprintf("unknown completion provider %q", cfg.Provider), nil).
			WithSuggestion("Use one of: openai, extractive.")
	}
}
