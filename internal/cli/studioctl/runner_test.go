package studioctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c-bata/go-prompt"

	"github.com/nl2sqlstudio/studio/internal/datasource/sqlitetest"
	"github.com/nl2sqlstudio/studio/internal/nl2sql"
)

func TestRunTablesCommand(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)

	stdout, stderr, code := run(t, Options{}, "--db", db, "tables")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if stdout != "customers\norders\n" {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunSchemaJSON(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)

	stdout, stderr, code := run(t, Options{}, "--db", db, "--format", "json", "schema")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	var payload struct {
		Dialect string `json:"dialect"`
		Tables  []struct {
			Name    string `json:"name"`
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
		} `json:"tables"`
	}
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("json decode failed: %v\n%s", err, stdout)
	}
	if payload.Dialect != "sqlite" || len(payload.Tables) != 2 {
		t.Fatalf("payload = %#v", payload)
	}
	if payload.Tables[0].Name != "customers" || len(payload.Tables[0].Columns) != 3 {
		t.Fatalf("customers = %#v", payload.Tables[0])
	}
}

func TestRunSchemaText(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)

	stdout, _, code := run(t, Options{}, "--db", db, "schema")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "Table: customers\n  - id\n  - name\n  - revenue\n") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunPreviewCommand(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)

	stdout, stderr, code := run(t, Options{}, "--db", db, "--format", "csv", "preview", "customers", "--limit", "2")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if stdout != "id,name,revenue\n1,Acme,1200.5\n2,Globex,830\n" {
		t.Fatalf("stdout = %q", stdout)
	}

	stdout, _, code = run(t, Options{}, "--db", db, "preview", "orders")
	if code != 0 {
		t.Fatalf("table exit code = %d", code)
	}
	if !strings.Contains(stdout, "customer_id") || !strings.Contains(stdout, "2024-03-02") {
		t.Fatalf("table output = %q", stdout)
	}

	_, stderr, code = run(t, Options{}, "--db", db, "preview", "invoices")
	if code != 1 {
		t.Fatalf("unknown table exit code = %d", code)
	}
	if !strings.Contains(stderr, "unknown table") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunAskCommand(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)
	out := filepath.Join(t.TempDir(), "top.parquet")
	options := Options{Translator: stubTranslator("```sql\nSELECT name, revenue FROM customers ORDER BY revenue DESC LIMIT 2\n```")}

	stdout, stderr, code := run(t, options, "--db", db, "--format", "csv", "ask", "top", "two", "customers", "--show-sql", "--out", out)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	want := "SQL: SELECT name, revenue FROM customers ORDER BY revenue DESC LIMIT 2\nname,revenue\nInitech,2100\nAcme,1200.5\n"
	if stdout != want {
		t.Fatalf("stdout = %q", stdout)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("export file is empty")
	}
	if !strings.Contains(stderr, "wrote 2 rows") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunAskFailures(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)

	cases := []struct {
		name       string
		translator nl2sql.Translator
		args       []string
		wantErr    string
	}{
		{"not configured", nil, []string{"ask", "anything"}, "not configured"},
		{"bad column", stubTranslator("SELECT nickname FROM customers"), []string{"ask", "nicknames"}, "nickname"},
		{"mutation", stubTranslator("DELETE FROM customers"), []string{"ask", "remove", "everyone"}, "DELETE"},
		{"export extension", stubTranslator("SELECT name FROM customers"), []string{"ask", "names", "--out", filepath.Join(t.TempDir(), "names.txt")}, "unsupported export file"},
	}
	for _, tc := range cases {
		args := append([]string{"--db", db}, tc.args...)
		_, stderr, code := run(t, Options{Translator: tc.translator}, args...)
		if code != 1 {
			t.Fatalf("%s: exit code = %d, stderr=%s", tc.name, code, stderr)
		}
		if !strings.Contains(stderr, tc.wantErr) {
			t.Fatalf("%s: stderr = %q", tc.name, stderr)
		}
	}
}

func TestRunSQLCommand(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)

	stdout, stderr, code := run(t, Options{}, "--db", db, "--format", "json", "sql", "SELECT", "count(*)", "AS", "n", "FROM", "orders")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(stdout), &records); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(records) != 1 || records[0]["n"] != float64(3) {
		t.Fatalf("records = %#v", records)
	}

	_, _, code = run(t, Options{}, "--db", db, "sql", "DELETE FROM orders")
	if code != 1 {
		t.Fatalf("delete exit code = %d", code)
	}
}

func TestRunRowLimitMarksTruncation(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)

	stdout, _, code := run(t, Options{}, "--db", db, "--row-limit", "1", "sql", "SELECT name FROM customers ORDER BY id")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "Acme") || strings.Contains(stdout, "Globex") {
		t.Fatalf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "(showing the first 1 rows)") {
		t.Fatalf("missing truncation note: %q", stdout)
	}
}

func TestRunMissingDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.db")

	_, stderr, code := run(t, Options{}, "--db", missing, "tables")
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "data source") {
		t.Fatalf("stderr = %q", stderr)
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Fatalf("missing database file was created: %v", err)
	}
}

func TestRunDemoCreatesQueryableDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "MiniCRM.db")

	stdout, stderr, code := run(t, Options{}, "--db", db, "demo", "--customers", "5", "--seed", "3")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, "5 customers") {
		t.Fatalf("stdout = %q", stdout)
	}

	stdout, _, code = run(t, Options{}, "--db", db, "--format", "csv", "sql", "SELECT count(*) AS n FROM customers")
	if code != 0 || stdout != "n\n5\n" {
		t.Fatalf("count exit=%d stdout=%q", code, stdout)
	}

	_, stderr, code = run(t, Options{}, "--db", db, "demo")
	if code != 1 || !strings.Contains(stderr, "already exists") {
		t.Fatalf("second demo exit=%d stderr=%q", code, stderr)
	}
	if _, _, code = run(t, Options{}, "--db", db, "demo", "--force"); code != 0 {
		t.Fatalf("forced demo exit code = %d", code)
	}
	if _, _, code = run(t, Options{}, "--db", db, "--dialect", "duckdb", "demo"); code != 2 {
		t.Fatalf("duckdb demo exit code = %d", code)
	}
}

func TestRunUsageErrors(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)

	cases := [][]string{
		{},
		{"bogus"},
		{"--db", db, "--format", "xml", "tables"},
		{"--no-such-flag", "tables"},
		{"--db", db, "preview"},
		{"--db", db, "preview", "customers", "--limit", "5000"},
		{"--db", db, "ask"},
		{"--db", db, "sql"},
		{"server"},
	}
	for _, args := range cases {
		_, stderr, code := run(t, Options{}, args...)
		if code != 2 {
			t.Fatalf("args %q: exit code = %d, stderr=%s", args, code, stderr)
		}
	}
}

func TestRunReplLineMode(t *testing.T) {
	db := sqlitetest.NewDB(t, sqlitetest.MiniCRM...)
	input := strings.Join([]string{
		".tables",
		"",
		".sql SELECT count(*) AS n FROM customers",
		".sql SELECT nickname FROM customers",
		".nope",
		"biggest customer",
		"exit",
		".schema",
	}, "\n")
	options := Options{
		Translator: stubTranslator("SELECT name FROM customers ORDER BY revenue DESC LIMIT 1"),
		Stdin:      strings.NewReader(input),
	}

	stdout, stderr, code := run(t, options, "--db", db, "--format", "csv", "repl")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	for _, want := range []string{
		"connected to test.db (SQLite)",
		"table\ncustomers\norders\n",
		"n\n3\n",
		"SQL: SELECT name FROM customers ORDER BY revenue DESC LIMIT 1\nname\nInitech\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "Table: customers") {
		t.Fatal("lines after exit were executed")
	}
	if !strings.Contains(stderr, "nickname") || !strings.Contains(stderr, "unknown command .nope") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestReplCompleterSuggestsTables(t *testing.T) {
	completer := replCompleter([]string{"customers", "orders"})

	buffer := prompt.NewBuffer()
	buffer.InsertText("SELECT * FROM cu", false, true)
	suggestions := completer(*buffer.Document())
	if len(suggestions) != 1 || suggestions[0].Text != "customers" {
		t.Fatalf("suggestions = %#v", suggestions)
	}

	buffer = prompt.NewBuffer()
	buffer.InsertText(".t", false, true)
	suggestions = completer(*buffer.Document())
	if len(suggestions) != 1 || suggestions[0].Text != ".tables" {
		t.Fatalf("command suggestions = %#v", suggestions)
	}

	if got := completer(*prompt.NewBuffer().Document()); got != nil {
		t.Fatalf("empty input suggestions = %#v", got)
	}
}

func TestRunServerCommands(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		var body bytes.Buffer
		_, _ = body.ReadFrom(r.Body)
		gotBody = body.String()
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error_code":"NOT_READY"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	options := Options{Timeout: 2 * time.Second}
	stdout, stderr, code := run(t, options, "--base-url", srv.URL, "--api-key", "k1", "server", "health")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if gotMethod != http.MethodGet || gotPath != "/v1/health" || gotAPIKey != "k1" {
		t.Fatalf("request = %s %s key=%q", gotMethod, gotPath, gotAPIKey)
	}
	if !strings.Contains(stdout, `"status": "ok"`) {
		t.Fatalf("stdout = %q", stdout)
	}

	_, _, code = run(t, options, "--base-url", srv.URL, "server", "ask", "how", "many", "orders")
	if code != 0 {
		t.Fatalf("ask exit code = %d", code)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/ask" || gotBody != `{"question":"how many orders"}` {
		t.Fatalf("ask request = %s %s %s", gotMethod, gotPath, gotBody)
	}

	_, stderr, code = run(t, options, "--base-url", srv.URL, "server", "ready")
	if code != 1 {
		t.Fatalf("ready exit code = %d", code)
	}
	if !strings.Contains(stderr, "http 503") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunServerRequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, stderr, code := run(t, Options{}, "--base-url", url, "server", "health")
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "request failed") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func run(t *testing.T, options Options, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	options.Stdout = &stdout
	options.Stderr = &stderr
	code := Run(context.Background(), args, options)
	return stdout.String(), stderr.String(), code
}

func stubTranslator(statement string) nl2sql.Translator {
	return nl2sql.NewSchemaTranslator(nl2sql.CompleterFunc(func(context.Context, nl2sql.Prompt) (nl2sql.Completion, error) {
		return nl2sql.Completion{Text: statement, Provider: "stub"}, nil
	}))
}
