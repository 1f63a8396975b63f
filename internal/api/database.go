package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nl2sqlstudio/studio/internal/auth"
	"github.com/nl2sqlstudio/studio/internal/config"
	"github.com/nl2sqlstudio/studio/internal/datasource"
	"github.com/nl2sqlstudio/studio/internal/pipeline"
	"github.com/nl2sqlstudio/studio/internal/storage"
)

type objectDatabaseRequest struct {
	Key string `json:"key"`
}

var uploadExtensions = map[string]bool{".db": true, ".sqlite": true, ".sqlite3": true}

func handleUploadDatabase(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return
	}
	if !authorized(w, r, auth.RoleAdmin) {
		return
	}

	maxBytes := uploadLimit(cfg, deps)
	// Leave room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "database file exceeds the upload limit", false, map[string]any{"max_bytes": maxBytes})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "FILE_REQUIRED", "multipart field \"file\" is required", false, map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = file.Close() }()

	if !uploadExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FILE_TYPE", "upload a SQLite .db file", false, map[string]any{"filename": header.Filename})
		return
	}

	uploadDir := deps.UploadDir
	if uploadDir == "" {
		uploadDir = cfg.Upload.Dir
	}
	path, err := datasource.SaveUpload(uploadDir, file, maxBytes)
	switch {
	case errors.Is(err, datasource.ErrUploadTooLarge):
		writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "database file exceeds the upload limit", false, map[string]any{"max_bytes": maxBytes})
		return
	case errors.Is(err, datasource.ErrNotSQLite):
		writeError(r.Context(), w, http.StatusBadRequest, "NOT_SQLITE", err.Error(), false, map[string]any{"filename": header.Filename})
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "UPLOAD_FAILED", "failed to store uploaded database", true, map[string]any{"details": err.Error()})
		return
	}

	session, err := deps.Sessions.Replace(r.Context(), datasource.Config{
		Dialect:       datasource.SQLite,
		DSN:           path,
		Label:         filepath.Base(header.Filename),
		RemoveOnClose: true,
	})
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeSessionOpened(w, session)
}

func handleObjectDatabase(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return
	}
	if !authorized(w, r, auth.RoleAdmin) {
		return
	}
	if deps.ObjectStore == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "OBJECT_STORE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}

	var request objectDatabaseRequest
	if !decodeJSON(w, r, &request, "database object") {
		return
	}

	maxBytes := uploadLimit(cfg, deps)
	sourceConfig, err := datasource.Fetch(r.Context(), deps.ObjectStore, request.Key, deps.UploadDir, maxBytes)
	switch {
	case errors.Is(err, datasource.ErrUploadTooLarge):
		writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "OBJECT_TOO_LARGE", "database object exceeds the upload limit", false, map[string]any{"key": request.Key, "max_bytes": maxBytes})
		return
	case errors.Is(err, storage.ErrInvalidObjectKey):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_OBJECT_KEY", err.Error(), false, nil)
		return
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "OBJECT_NOT_FOUND", "database object was not found", false, map[string]any{"key": request.Key})
		return
	case err != nil:
		writePipelineError(r.Context(), w, &pipeline.DataSourceError{Op: "fetch", Err: err})
		return
	}

	session, err := deps.Sessions.Replace(r.Context(), sourceConfig)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeSessionOpened(w, session)
}

func handleListDatabaseObjects(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r, auth.RoleAdmin) {
		return
	}
	if deps.ObjectStore == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "OBJECT_STORE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}
	prefix := r.URL.Query().Get("prefix")
	databases, err := storage.ListDatabases(r.Context(), deps.ObjectStore, prefix)
	switch {
	case errors.Is(err, storage.ErrInvalidObjectKey):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_OBJECT_KEY", err.Error(), false, nil)
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusBadGateway, "OBJECT_STORE_UNAVAILABLE", "listing the object store failed", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prefix":  prefix,
		"objects": databases,
	})
}

func writeSessionOpened(w http.ResponseWriter, session *pipeline.Session) {
	writeJSON(w, http.StatusOK, map[string]any{
		"database": session.Label(),
		"dialect":  session.Dialect().Name,
		"tables":   session.Tables(),
	})
}

func uploadLimit(cfg config.Config, deps Dependencies) int64 {
	if deps.UploadMaxBytes > 0 {
		return deps.UploadMaxBytes
	}
	return cfg.Upload.MaxBytes
}
