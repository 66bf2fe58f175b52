// Package llm implements the model-routing abstraction and the
// fallback extractor used when no vendor parser recognizes a page.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIRouter forwards prompts to an OpenAI-compatible backend,
// selecting the model by task name from configuration. Provider
// failures collapse to a single error; callers treat any of them as
// one "LLM error" outcome.
type OpenAIRouter struct {
	client  *openai.Client
	tasks   map[string]string
	timeout time.Duration
}

// RouterConfig configures an OpenAIRouter.
type RouterConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// Tasks maps a task name (e.g. "reason") to a model identifier.
	Tasks map[string]string
}

// NewRouter creates an OpenAIRouter. BaseURL is optional and allows
// pointing at any OpenAI-compatible endpoint.
func NewRouter(cfg RouterConfig) *OpenAIRouter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIRouter{
		client:  openai.NewClientWithConfig(clientCfg),
		tasks:   cfg.Tasks,
		timeout: timeout,
	}
}

// Complete sends the prompt to the model configured for the task.
// The call runs under its own timeout, independent of the page-fetch
// timeout.
func (r *OpenAIRouter) Complete(ctx context.Context, task, prompt string) (string, error) {
	model, ok := r.tasks[task]
	if !ok {
		return "", fmt.Errorf("no model configured for task %q", task)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm completion: no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
