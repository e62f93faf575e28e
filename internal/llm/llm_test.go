package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docqa/internal/config"
	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

type chatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func testGuard(maxRetries int) *docerrors.Guard {
	return docerrors.NewGuard(docerrors.GuardConfig{
		Name:    "completion provider",
		Code:    docerrors.ErrCodeCompletionFailed,
		Timeout: 2 * time.Second,
		Retry: docerrors.RetryConfig{
			MaxRetries:   maxRetries,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1,
		},
		MaxFailures: 100,
	})
}

func chatServer(t *testing.T, failFirst int, calls *atomic.Int32, seen *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if int(n) <= failFirst {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Failover takes 5 minutes.\n"},"finish_reason":"stop"}]}`))
	}))
}

func TestOpenAICompleter_SendsPromptAndParameters(t *testing.T) {
	// Given: a chat server
	var calls atomic.Int32
	var seen chatRequest
	srv := chatServer(t, 0, &calls, &seen)
	defer srv.Close()

	c, err := NewOpenAICompleter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, testGuard(0))
	require.NoError(t, err)

	// When: I complete a prompt
	out, err := c.Complete(context.Background(), Request{Prompt: "Question: RTO?", MaxTokens: 256, Temperature: 0.2})

	// Then: the prompt goes out as one user message with the configured parameters
	require.NoError(t, err)
	assert.Equal(t, "  Failover takes 5 minutes.\n", out)
	assert.Equal(t, DefaultModel, seen.Model)
	assert.Equal(t, 256, seen.MaxTokens)
	assert.InDelta(t, 0.2, seen.Temperature, 1e-6)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, "user", seen.Messages[0].Role)
	assert.Equal(t, "Question: RTO?", seen.Messages[0].Content)
}

func TestOpenAICompleter_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	var seen chatRequest
	srv := chatServer(t, 1, &calls, &seen)
	defer srv.Close()

	c, err := NewOpenAICompleter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, testGuard(2))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Request{Prompt: "p"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, DefaultMaxTokens, seen.MaxTokens)
}

func TestOpenAICompleter_ExhaustedRetriesIsCompletionError(t *testing.T) {
	// Given: a server that keeps failing
	var calls atomic.Int32
	var seen chatRequest
	srv := chatServer(t, 10, &calls, &seen)
	defer srv.Close()

	c, err := NewOpenAICompleter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, testGuard(1))
	require.NoError(t, err)

	// When: I complete
	_, err = c.Complete(context.Background(), Request{Prompt: "p"})

	// Then: a completion error is surfaced after two attempts
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeCompletionFailed, docerrors.GetCode(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtractiveCompleter(t *testing.T) {
	c := ExtractiveCompleter{}

	out, err := c.Complete(context.Background(), Request{Contexts: []string{"  ", " first block ", "second"}})
	require.NoError(t, err)
	assert.Equal(t, "first block", out)

	out, err = c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, out)
	assert.Equal(t, "extractive", c.ModelName())
}

func TestNewCompleter(t *testing.T) {
	cfg := config.NewConfig()

	cfg.Completion.APIKey = "sk"
	c, err := NewCompleter(cfg.Completion, cfg.Resilience)
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", c.ModelName())

	cfg.Completion.APIKey = ""
	c, err = NewCompleter(cfg.Completion, cfg.Resilience)
	assert.Nil(t, c)
	assert.Equal(t, docerrors.ErrCodeMissingAPIKey, docerrors.GetCode(err))

	cfg.Completion.Provider = "extractive"
	c, err = NewCompleter(cfg.Completion, cfg.Resilience)
	require.NoError(t, err)
	assert.IsType(t, ExtractiveCompleter{}, c)

	cfg.Completion.Provider = "claude"
	_, err = NewCompleter(cfg.Completion, cfg.Resilience)
	assert.Equal(t, docerrors.ErrCodeConfigInvalid, docerrors.GetCode(err))
}
