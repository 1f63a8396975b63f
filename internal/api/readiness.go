package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultReadinessTimeout = 2 * time.Second

// ReadinessCheck is one named dependency probed by GET /v1/ready.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// CheckSession reports ready once a database is open and answers a ping.
func CheckSession(sessions SessionProvider) ReadinessCheck {
	return ReadinessCheck{Name: "database", Probe: func(ctx context.Context) error {
		if sessions == nil {
			return errors.New("session manager is not configured")
		}
		session, err := sessions.Current()
		if err != nil {
			return err
		}
		return session.Ping(ctx)
	}}
}

// CheckObjectStore wraps an optional probe such as s3.Store.HealthCheck.
// A nil probe yields a check that is skipped.
func CheckObjectStore(probe func(ctx context.Context) error) ReadinessCheck {
	return ReadinessCheck{Name: "object_store", Probe: probe}
}

// runReadiness probes every check concurrently and reports each outcome by
// name. Checks without a probe are left out.
func runReadiness(ctx context.Context, checks []ReadinessCheck, timeout time.Duration) (map[string]string, bool) {
	if timeout <= 0 {
		timeout = defaultReadinessTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcomes := make([]error, len(checks))
	var group errgroup.Group
	for i, check := range checks {
		if check.Probe == nil {
			continue
		}
		group.Go(func() error {
			outcomes[i] = check.Probe(ctx)
			return nil
		})
	}
	_ = group.Wait()

	report := make(map[string]string, len(checks))
	ready := true
	for i, check := range checks {
		if check.Probe == nil {
			continue
		}
		if outcomes[i] != nil {
			ready = false
			report[check.Name] = outcomes[i].Error()
			continue
		}
		report[check.Name] = "ok"
	}
	return report, ready
}

func handleReady(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	report, ready := runReadiness(r.Context(), deps.Readiness, deps.DependencyTimeout)
	if !ready {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", "one or more dependencies are not ready", true, map[string]any{"checks": report})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": report})
}
