package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nl2sqlstudio/studio/internal/schema"
)

var (
	ErrEmptyStatement      = errors.New("generation service returned an empty statement")
	ErrTruncatedCompletion = errors.New("generation service returned a truncated statement")
)

type Request struct {
	Question string
	Schema   schema.Description
	// Dialect is the display name used in the prompt.
	Dialect string
}

type Result struct {
	SQL      string `json:"sql"`
	Raw      string `json:"-"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Cached   bool   `json:"cached"`
	// Usage is the token count reported by the service; zero when cached.
	Usage TokenUsage `json:"usage"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

type Completion struct {
	Text     string
	Provider string
	Model    string
	// FinishReason is "length" when the service cut the answer short.
	FinishReason string
	Usage        TokenUsage
}

type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// Completer takes the two prompt turns and returns one text blob.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}

// SchemaTranslator builds the prompt, calls the completer and sanitizes
// whatever text comes back.
type SchemaTranslator struct {
	completer Completer
}

func NewSchemaTranslator(completer Completer) *SchemaTranslator {
	return &SchemaTranslator{completer: completer}
}

func (t *SchemaTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if t.completer == nil {
		return Result{}, fmt.Errorf("completer is not configured")
	}
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}
	completion, err := t.completer.Complete(ctx, BuildPrompt(req.Dialect, req.Schema, req.Question))
	if err != nil {
		return Result{}, err
	}
	sql := Sanitize(completion.Text)
	if sql == "" {
		return Result{}, ErrEmptyStatement
	}
	if completion.FinishReason == "length" {
		return Result{}, fmt.Errorf("%w: answer was cut off at the token limit", ErrTruncatedCompletion)
	}
	return Result{
		SQL:      sql,
		Raw:      completion.Text,
		Provider: completion.Provider,
		Model:    completion.Model,
		Usage:    completion.Usage,
	}, nil
}

// CompleterFunc adapts a plain function, mostly for tests and stubs.
type CompleterFunc func(ctx context.Context, prompt Prompt) (Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	return f(ctx, prompt)
}
