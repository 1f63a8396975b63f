package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nl2sqlstudio/studio/internal/auth"
	"github.com/nl2sqlstudio/studio/internal/result"
)

const maxPreviewRows = 1000

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(deps, w, r, auth.RoleReader)
	if !ok {
		return
	}
	description := session.Schema()
	writeJSON(w, http.StatusOK, map[string]any{
		"database":     session.Label(),
		"dialect":      session.Dialect().Name,
		"dialect_name": session.Dialect().DisplayName,
		"tables":       description.Tables,
		"text":         description.Text(),
		"fingerprint":  description.Fingerprint(),
	})
}

func handleTableRows(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(deps, w, r, auth.RoleReader)
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxPreviewRows {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and "+strconv.Itoa(maxPreviewRows), false, nil)
			return
		}
		limit = parsed
	}

	table, err := session.Preview(r.Context(), r.PathValue("table"), limit)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, tableResponse(table))
}

func tableResponse(table result.Table) map[string]any {
	return map[string]any{
		"columns":   table.Columns,
		"rows":      table.Rows,
		"truncated": table.Truncated,
	}
}
