// Package llm wraps an OpenAI-compatible chat API for the components that
// need structured JSON answers: the LLM judge scorer and rubric generation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o"

// APIKeyEnvVars are checked in order by APIKeyFromEnv.
var APIKeyEnvVars = []string{"OPEN_AI_KEY", "OPENAI_API_KEY"}

// APIKeyFromEnv returns the first non-empty key among APIKeyEnvVars.
func APIKeyFromEnv() string {
	for _, name := range APIKeyEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// Completer returns a JSON object answering prompt.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// Config holds the chat client settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// Client is a Completer backed by the chat completions API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

// NewClient creates a chat client. An empty APIKey is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.ConfigError(
			fmt.Sprintf("OpenAI API key is not configured (set %s)", strings.Join(APIKeyEnvVars, " or ")), nil)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		api:         openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// CompleteJSON sends prompt as a single user message and requires a JSON
// object response.
func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classifyError(ctx, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New(errors.ErrCodeScorerUnavailable, "no content in chat completion response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// DecodeJSON unmarshals a model answer into v, tolerating a fenced code block
// around the object.
func DecodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), v); err != nil {
		return errors.New(errors.ErrCodeScorerRejected, "model answer is not valid JSON", err)
	}
	return nil
}

// classifyError maps transport failures onto retryable and non-retryable codes.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.New(errors.ErrCodeScorerTimeout, "chat completion timed out", err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusTooManyRequests || status >= 500 || status == 0 {
		return errors.New(errors.ErrCodeScorerUnavailable, fmt.Sprintf("chat completion failed: %v", err), err)
	}
	return errors.New(errors.ErrCodeScorerRejected, fmt.Sprintf("chat completion rejected (%d): %v", status, err), err).
		WithDetail("status", fmt.Sprintf("%d", status))
}
