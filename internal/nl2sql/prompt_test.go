package nl2sql

import (
	"strings"
	"testing"

	"github.com/nl2sqlstudio/studio/internal/schema"
)

func TestBuildPromptWithSchema(t *testing.T) {
	description := schema.Description{Dialect: "sqlite", Tables: []schema.Table{
		{Name: "customers", Columns: []schema.Column{{Name: "id"}, {Name: "name"}, {Name: "revenue"}}},
	}}
	prompt := BuildPrompt("SQLite", description, "  top 2 customers by revenue ")

	if len(prompt.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(prompt.Messages))
	}
	if prompt.Messages[0].Role != RoleSystem || prompt.Messages[1].Role != RoleUser {
		t.Fatalf("roles = %s,%s", prompt.Messages[0].Role, prompt.Messages[1].Role)
	}
	system := prompt.System()
	for _, want := range []string{
		"for a SQLite database",
		"Table: customers\n  - id\n  - name\n  - revenue\n",
		"no explanation and no markdown formatting",
		"uniquely aliased",
	} {
		if !strings.Contains(system, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, system)
		}
	}
	if prompt.User() != "top 2 customers by revenue" {
		t.Fatalf("User() = %q", prompt.User())
	}
}

func TestBuildPromptWithEmptySchema(t *testing.T) {
	prompt := BuildPrompt("PostgreSQL", schema.Description{}, "how many rows?")

	if len(prompt.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(prompt.Messages))
	}
	if !strings.Contains(prompt.System(), "Here is the database schema:\n\nGenerate only") {
		t.Fatalf("empty schema section not rendered:\n%s", prompt.System())
	}
	if strings.Contains(prompt.System(), "Table:") {
		t.Fatal("empty schema should list no tables")
	}
	if prompt.User() != "how many rows?" {
		t.Fatalf("User() = %q", prompt.User())
	}
}

func TestSanitizeStripsFences(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"```sql\nSELECT name, revenue FROM customers ORDER BY revenue DESC LIMIT 2\n```", "SELECT name, revenue FROM customers ORDER BY revenue DESC LIMIT 2"},
		{"  SELECT 1  \n", "SELECT 1"},
		{"```\nSELECT 2;\n```", "SELECT 2;"},
		{"Here:\n```SQL\nSELECT 3\n```\n", "Here:\n\nSELECT 3"},
		{"```sql```", ""},
		{"```sqlite\nSELECT 1\n```", "SELECT 1"},
		{"```postgresql\nSELECT 1\n```", "SELECT 1"},
		{"```tsql  \r\nSELECT TOP 5 name FROM customers\r\n```", "SELECT TOP 5 name FROM customers"},
		{"```Sql\nSELECT 1\n```", "SELECT 1"},
		{"```SELECT 4```", "SELECT 4"},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.raw); got != tc.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
