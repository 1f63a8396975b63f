package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/nl2sqlstudio/studio/internal/auth"
	"github.com/nl2sqlstudio/studio/internal/nl2sql"
	"github.com/nl2sqlstudio/studio/internal/result"
)

type questionRequest struct {
	Question string `json:"question"`
}

type statementRequest struct {
	SQL    string `json:"sql"`
	Format string `json:"format,omitempty"`
}

type askResponse struct {
	Question     string            `json:"question"`
	SQL          string            `json:"sql"`
	Provider     string            `json:"provider,omitempty"`
	Model        string            `json:"model,omitempty"`
	Cached       bool              `json:"cached"`
	Usage        nl2sql.TokenUsage `json:"usage"`
	Columns      []string          `json:"columns"`
	Rows         [][]any           `json:"rows"`
	Truncated    bool              `json:"truncated"`
	Chart        *result.Chart     `json:"chart"`
	DurationMs   int64             `json:"duration_ms"`
	GenerationMs int64             `json:"generation_ms"`
	ExecutionMs  int64             `json:"execution_ms"`
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(deps, w, r, auth.RoleReader)
	if !ok {
		return
	}
	question, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	translation, err := session.Translate(r.Context(), question)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sql":      translation.SQL,
		"provider": translation.Provider,
		"model":    translation.Model,
		"cached":   translation.Cached,
		"usage":    translation.Usage,
	})
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(deps, w, r, auth.RoleReader)
	if !ok {
		return
	}
	question, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	answer, err := session.Ask(r.Context(), question)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Question:     answer.Question,
		SQL:          answer.Translation.SQL,
		Provider:     answer.Translation.Provider,
		Model:        answer.Translation.Model,
		Cached:       answer.Translation.Cached,
		Usage:        answer.Translation.Usage,
		Columns:      answer.Table.Columns,
		Rows:         answer.Table.Rows,
		Truncated:    answer.Table.Truncated,
		Chart:        answer.Chart,
		DurationMs:   (answer.GenerationDuration + answer.ExecutionDuration).Milliseconds(),
		GenerationMs: answer.GenerationDuration.Milliseconds(),
		ExecutionMs:  answer.ExecutionDuration.Milliseconds(),
	})
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(deps, w, r, auth.RoleReader)
	if !ok {
		return
	}
	request, ok := decodeStatement(w, r)
	if !ok {
		return
	}

	table, err := session.Execute(r.Context(), request.SQL)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	response := tableResponse(table)
	if chart, ok := result.SelectChart(table); ok {
		response["chart"] = chart
	}
	writeJSON(w, http.StatusOK, response)
}

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(deps, w, r, auth.RoleReader)
	if !ok {
		return
	}
	request, ok := decodeStatement(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(strings.TrimSpace(request.Format))
	if format == "" {
		format = result.FormatCSV
	}
	if format != result.FormatCSV && format != result.FormatParquet {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or parquet", false, map[string]any{"format": request.Format})
		return
	}

	table, err := session.Execute(r.Context(), request.SQL)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if format == result.FormatParquet {
		err = result.WriteParquet(&buf, table)
	} else {
		err = result.WriteCSV(&buf, table)
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode result", false, map[string]any{"details": err.Error()})
		return
	}

	w.Header().Set("Content-Type", result.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="result.`+format+`"`)
	if table.Truncated {
		w.Header().Set("X-Result-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var request questionRequest
	if !decodeJSON(w, r, &request, "question") {
		return "", false
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return "", false
	}
	return question, true
}

func decodeStatement(w http.ResponseWriter, r *http.Request) (statementRequest, bool) {
	var request statementRequest
	if !decodeJSON(w, r, &request, "query") {
		return statementRequest{}, false
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return statementRequest{}, false
	}
	return request, true
}
