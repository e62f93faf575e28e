package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// OpenAIConfig configures the chat completion client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAICompleter answers with the OpenAI chat completions API.
type OpenAICompleter struct {
	client *openai.Client
	guard  *docerrors.Guard
	model  string
}

var _ Completer = (*OpenAICompleter)(nil)

// NewOpenAICompleter creates a completer whose calls run under guard.
func NewOpenAICompleter(cfg OpenAIConfig, guard *docerrors.Guard) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, docerrors.New(docerrors.ErrCodeMissingAPIKey, "OpenAI API key is not set", nil).
			WithSuggestion("Export OPENAI_API_KEY or run with --offline.")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientCfg),
		guard:  guard,
		model:  cfg.Model,
	}, nil
}

// Complete sends req.Prompt as a single user message.
func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	return docerrors.Do(ctx, c.guard, func(ctx context.Context) (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
			},
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Choices) == 0 {
			return "", docerrors.New(docerrors.ErrCodeProviderRejected, "completion returned no choices", nil)
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// ModelName returns the chat model identifier.
func (c *OpenAICompleter) ModelName() string {
	return c.model
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return docerrors.FromHTTPStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return docerrors.FromHTTPStatus(reqErr.HTTPStatusCode, "", err)
	}
	return docerrors.Classify(err)
}
