package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nl2sqlstudio/studio/internal/auth"
	"github.com/nl2sqlstudio/studio/internal/config"
	"github.com/nl2sqlstudio/studio/internal/datasource"
	"github.com/nl2sqlstudio/studio/internal/observability"
	"github.com/nl2sqlstudio/studio/internal/pipeline"
	"github.com/nl2sqlstudio/studio/internal/storage"
)

// SessionProvider is satisfied by *pipeline.Manager.
type SessionProvider interface {
	Current() (*pipeline.Session, error)
	Replace(ctx context.Context, cfg datasource.Config) (*pipeline.Session, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         []ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Sessions          SessionProvider
	ObjectStore       storage.ObjectStore
	UploadDir         string
	UploadMaxBytes    int64
	UI                http.Handler
}

type route struct {
	pattern string
	handle  func(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request)
}

// routes need credentials when auth is required. Role checks happen per handler.
var routes = []route{
	{"GET /v1/schema", withoutConfig(handleSchema)},
	{"GET /v1/tables/{table}/rows", withoutConfig(handleTableRows)},
	{"POST /v1/translate", withoutConfig(handleTranslate)},
	{"POST /v1/ask", withoutConfig(handleAsk)},
	{"POST /v1/query", withoutConfig(handleQuery)},
	{"POST /v1/export", withoutConfig(handleExport)},
	{"POST /v1/database", handleUploadDatabase},
	{"POST /v1/database/object", handleObjectDatabase},
	{"GET /v1/database/objects", withoutConfig(handleListDatabaseObjects)},
}

func withoutConfig(h func(Dependencies, http.ResponseWriter, *http.Request)) func(config.Config, Dependencies, http.ResponseWriter, *http.Request) {
	return func(_ config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
		h(deps, w, r)
	}
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})
	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		handleReady(deps, w, r)
	})
	mux.Handle("GET /v1/metrics", promhttp.Handler())

	guard := credentialGuard(cfg, deps)
	for _, rt := range routes {
		mux.Handle(rt.pattern, guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt.handle(cfg, deps, w, r)
		})))
	}
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// credentialGuard returns the wrapper applied to every route in routes.
func credentialGuard(cfg config.Config, deps Dependencies) func(http.Handler) http.Handler {
	switch {
	case !cfg.Auth.Required:
		return func(next http.Handler) http.Handler { return next }
	case deps.AuthMiddleware != nil:
		return deps.AuthMiddleware
	}
	if deps.Logger != nil {
		deps.Logger.Error("auth required but auth middleware missing")
	}
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
		})
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func currentSession(deps Dependencies, w http.ResponseWriter, r *http.Request, role string) (*pipeline.Session, bool) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return nil, false
	}
	if !authorized(w, r, role) {
		return nil, false
	}
	session, err := deps.Sessions.Current()
	if err != nil {
		writePipelineError(r.Context(), w, &pipeline.DataSourceError{Op: "session", Err: err})
		return nil, false
	}
	return session, true
}

func authorized(w http.ResponseWriter, r *http.Request, role string) bool {
	if err := auth.Authorize(r.Context(), role); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, map[string]any{"required_role": role})
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any, what string) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid "+what+" request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}

// writePipelineError maps the pipeline error kinds onto HTTP statuses.
func writePipelineError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		sourceErr     *pipeline.DataSourceError
		generationErr *pipeline.GenerationServiceError
		executionErr  *pipeline.QueryExecutionError
		rejectedErr   *pipeline.StatementRejectedError
	)
	switch {
	case errors.Is(err, pipeline.ErrUnknownTable):
		writeError(ctx, w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error(), false, nil)
	case errors.As(err, &sourceErr):
		writeError(ctx, w, http.StatusServiceUnavailable, "DATA_SOURCE_UNAVAILABLE", err.Error(), true, nil)
	case errors.As(err, &generationErr):
		if errors.Is(err, pipeline.ErrTranslatorNotConfigured) {
			writeError(ctx, w, http.StatusNotImplemented, "GENERATION_NOT_CONFIGURED", err.Error(), false, nil)
			return
		}
		if generationErr.Timeout() {
			writeError(ctx, w, http.StatusGatewayTimeout, "GENERATION_TIMEOUT", err.Error(), true, nil)
			return
		}
		writeError(ctx, w, http.StatusBadGateway, "GENERATION_FAILED", err.Error(), generationErr.Retryable(), nil)
	case errors.As(err, &executionErr):
		writeError(ctx, w, http.StatusUnprocessableEntity, "QUERY_EXECUTION_FAILED", err.Error(), false, map[string]any{"sql": executionErr.Statement})
	case errors.As(err, &rejectedErr):
		writeError(ctx, w, http.StatusUnprocessableEntity, "STATEMENT_REJECTED", err.Error(), false, map[string]any{
			"sql":     rejectedErr.Statement,
			"kind":    string(rejectedErr.Classification.Kind),
			"keyword": rejectedErr.Classification.Keyword,
		})
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), true, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
