package studioctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// serverCommand talks to a running studio-api instead of opening a database.
func (r *runner) serverCommand() *cobra.Command {
	server := &cobra.Command{
		Use:   "server",
		Short: "Call a running studio API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return &usageError{msg: "a server command is required"}
		},
	}
	server.AddCommand(
		r.serverCall("health", "GET /v1/health", http.MethodGet, "/v1/health"),
		r.serverCall("ready", "GET /v1/ready", http.MethodGet, "/v1/ready"),
		r.serverCall("schema", "GET /v1/schema", http.MethodGet, "/v1/schema"),
		&cobra.Command{
			Use:   "ask <question...>",
			Short: "POST /v1/ask",
			Args:  minimumArgs(1, "server ask"),
			RunE: func(cmd *cobra.Command, args []string) error {
				body, err := json.Marshal(map[string]string{"question": strings.Join(args, " ")})
				if err != nil {
					return failed(err)
				}
				return failed(r.call(cmd.Context(), http.MethodPost, "/v1/ask", body))
			},
		},
	)
	return server
}

func (r *runner) serverCall(name, short, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  exactArgs(0, "server "+name),
		RunE: func(cmd *cobra.Command, args []string) error {
			return failed(r.call(cmd.Context(), method, path, nil))
		},
	}
}

func (r *runner) call(ctx context.Context, method, path string, body []byte) error {
	client := r.options.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: durationOr(r.options.Timeout, 30*time.Second)}
	}

	endpoint := strings.TrimRight(r.options.BaseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, r.options.APIKey, body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		return fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(responseBody)))
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(r.stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(r.stdout, string(responseBody))
	}
	return nil
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}
