// Package uistatic embeds the browser front end served at the API root.
package uistatic

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed all:app
var appFS embed.FS

// Handler serves the embedded app. Client-side routes get index.html;
// unknown /v1/ paths stay 404 so API typos are not masked by the page.
func Handler() http.Handler {
	assets, err := fs.Sub(appFS, "app")
	if err != nil {
		return http.NotFoundHandler()
	}
	index, err := fs.ReadFile(assets, "index.html")
	if err != nil {
		return http.NotFoundHandler()
	}
	files := http.FileServerFS(assets)
	started := time.Now()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		switch {
		case name == "v1" || strings.HasPrefix(name, "v1/"):
			http.NotFound(w, r)
		case name != "." && name != "index.html" && isFile(assets, name):
			w.Header().Set("Cache-Control", "public, max-age=300")
			files.ServeHTTP(w, r)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeContent(w, r, "index.html", started, bytes.NewReader(index))
		}
	})
}

func isFile(assets fs.FS, name string) bool {
	info, err := fs.Stat(assets, name)
	return err == nil && !info.IsDir()
}
