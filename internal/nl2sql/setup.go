package nl2sql

import (
	"fmt"

	"github.com/nl2sqlstudio/studio/internal/config"
)

// FromConfig assembles the translator stack for ai: an OpenAI-compatible
// completer, the schema translator and, when CacheTTL is set, the cache.
// It returns nil without error when no generation service is configured.
func FromConfig(ai config.AIConfig) (Translator, error) {
	if !ai.Enabled() {
		return nil, nil
	}
	completer, err := NewOpenAICompleter(OpenAIConfig{
		BaseURL:     ai.BaseURL,
		APIKey:      ai.APIKey,
		Model:       ai.Model,
		Temperature: ai.Temperature,
		Timeout:     ai.Timeout,
		MaxRetries:  ai.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("configure generation service: %w", err)
	}
	var translator Translator = NewSchemaTranslator(completer)
	if ai.CacheTTL > 0 {
		translator = NewCachingTranslator(translator, ai.CacheTTL)
	}
	return translator, nil
}
