package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/nl2sqlstudio/studio/internal/cli/studioctl"
	"github.com/nl2sqlstudio/studio/internal/config"
	"github.com/nl2sqlstudio/studio/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("studioctl")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	options := studioctl.Options{
		Config:  cfg,
		BaseURL: envOr("STUDIO_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("STUDIO_API_KEY")),
		Timeout: parseDurationWithDefault(strings.TrimSpace(os.Getenv("STUDIO_CLI_TIMEOUT")), 30*time.Second),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Logger:  observability.NopLogger(),
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("STUDIO_CLI_DEBUG")), "true") {
		options.Logger = observability.NewLogger(cfg, os.Stderr)
	}
	// Piped input runs the repl line by line instead of the interactive prompt.
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		options.Stdin = os.Stdin
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := studioctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid STUDIO_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
