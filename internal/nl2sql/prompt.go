package nl2sql

import (
	"fmt"
	"strings"

	"github.com/nl2sqlstudio/studio/internal/schema"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is the two-turn payload sent to the generation service.
type Prompt struct {
	Messages []Message `json:"messages"`
}

func (p Prompt) System() string {
	return p.content(RoleSystem)
}

func (p Prompt) User() string {
	return p.content(RoleUser)
}

func (p Prompt) content(role string) string {
	for _, message := range p.Messages {
		if message.Role == role {
			return message.Content
		}
	}
	return ""
}

const systemTemplate = `You are a helpful assistant that translates natural language questions into SQL queries for a %s database.
Here is the database schema:
%s
Generate only a single SQL query, with no explanation and no markdown formatting.
Make sure column names in the result are uniquely aliased.`

// BuildPrompt grounds question in description. dialect is the name shown to
// the model, e.g. "SQLite". An empty description yields an empty schema
// section, never an error.
func BuildPrompt(dialect string, description schema.Description, question string) Prompt {
	dialect = strings.TrimSpace(dialect)
	if dialect == "" {
		dialect = "SQLite"
	}
	return Prompt{Messages: []Message{
		{Role: RoleSystem, Content: fmt.Sprintf(systemTemplate, dialect, description.Text())},
		{Role: RoleUser, Content: strings.TrimSpace(question)},
	}}
}
