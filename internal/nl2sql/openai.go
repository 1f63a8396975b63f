package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	openAIProvider     = "openai-compatible"
	defaultOpenAIModel = "gpt-3.5-turbo"
	maxResponseBytes   = 4 << 20
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	// MaxRetries bounds extra attempts after a 429 or 5xx answer.
	MaxRetries int
	// HTTPClient overrides the default client; Timeout is then ignored.
	HTTPClient *http.Client
}

// OpenAICompleter calls a chat-completions endpoint.
type OpenAICompleter struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	backoff     time.Duration
	client      *http.Client
}

func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	apiKey := strings.TrimSpace(cfg.APIKey)
	switch {
	case baseURL == "":
		return nil, errors.New("base URL is required")
	case apiKey == "":
		return nil, errors.New("api key is required")
	case cfg.MaxRetries < 0:
		return nil, errors.New("max retries must not be negative")
	}
	completer := &OpenAICompleter{
		endpoint:    baseURL + "/v1/chat/completions",
		apiKey:      apiKey,
		model:       firstNonBlank(cfg.Model, defaultOpenAIModel),
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		backoff:     500 * time.Millisecond,
		client:      cfg.HTTPClient,
	}
	if completer.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		completer.client = &http.Client{Timeout: timeout}
	}
	return completer, nil
}

func (c *OpenAICompleter) Model() string {
	return c.model
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	payload, err := json.Marshal(chatRequest{Model: c.model, Messages: prompt.Messages, Temperature: c.temperature})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	for attempt := 0; ; attempt++ {
		completion, wait, err := c.attempt(ctx, payload)
		var statusErr *StatusError
		if err == nil || !errors.As(err, &statusErr) || !statusErr.Retryable() || attempt >= c.maxRetries {
			return completion, err
		}
		if wait <= 0 {
			wait = c.backoff << attempt
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Completion{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// attempt makes one request. The returned duration is the server's
// Retry-After hint, if any.
func (c *OpenAICompleter) attempt(ctx context.Context, payload []byte) (Completion, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Completion{}, 0, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Completion{}, 0, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Completion{}, 0, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Completion{}, retryAfter(resp.Header.Get("Retry-After")), newStatusError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Completion{}, 0, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, 0, errors.New("chat completion has no choices")
	}
	choice := parsed.Choices[0]
	return Completion{
		Text:         choice.Message.Content,
		Provider:     openAIProvider,
		Model:        firstNonBlank(parsed.Model, c.model),
		FinishReason: choice.FinishReason,
		Usage: TokenUsage{
			Prompt:     parsed.Usage.PromptTokens,
			Completion: parsed.Usage.CompletionTokens,
			Total:      parsed.Usage.TotalTokens,
		},
	}, 0, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// StatusError is a non-2xx answer from the generation service. Message and
// Type come from the {"error": {...}} envelope when the body has one.
type StatusError struct {
	StatusCode int
	Type       string
	Message    string
	Body       string
}

func newStatusError(status int, body []byte) *StatusError {
	statusErr := &StatusError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 {
		return statusErr
	}
	var detail struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	if json.Unmarshal(envelope.Error, &detail) == nil {
		statusErr.Message, statusErr.Type = detail.Message, detail.Type
		return statusErr
	}
	var text string
	if json.Unmarshal(envelope.Error, &text) == nil {
		statusErr.Message = text
	}
	return statusErr
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat completion failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("chat completion failed with status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports throttling and server-side failures.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// retryAfter reads the delay-seconds form of Retry-After, capped at 30s.
func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return 0
	}
	return min(time.Duration(seconds)*time.Second, 30*time.Second)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
