package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nl2sqlstudio/studio/internal/observability"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// Rejection reasons, also used as the metric label.
const (
	reasonMissing = "missing_key"
	reasonScheme  = "unsupported_scheme"
	reasonInvalid = "invalid_key"
)

const bearerScheme = "Bearer"

// Middleware authenticates every request with an X-API-Key header or an
// "Authorization: Bearer" token and attaches the resulting Identity.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, reason := credentials(r)
			if reason == "" {
				identity, ok := validator.Validate(r.Context(), key)
				if ok {
					logger.DebugContext(r.Context(), "request authenticated", slog.String("principal", identity.Principal))
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
					return
				}
				reason = reasonInvalid
			}
			reject(w, r, logger, reason)
		})
	}
}

func credentials(r *http.Request) (string, string) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", reasonMissing
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", reasonScheme
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", reasonMissing
	}
	return token, ""
}

var rejectMessages = map[string]string{
	reasonMissing: "missing API key",
	reasonScheme:  "unsupported authorization scheme, use Bearer or X-API-Key",
	reasonInvalid: "invalid API key",
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	observability.ObserveAuthFailure(reason)
	logger.WarnContext(r.Context(), "request rejected",
		slog.String("reason", reason),
		slog.String("path", r.URL.Path),
	)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="studio"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    rejectMessages[reason],
		"retryable":  false,
		"context":    map[string]any{"reason": reason},
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
