package api

import (
	"embed"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// indexPageData holds template data for the built-in index page.
type indexPageData struct {
	Title string
}

// handleIndex serves index.html from the static directory, or the built-in
// page when the directory has none.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(s.config.StaticDir, "index.html")
	if info, err := os.Stat(index); err == nil && !info.IsDir() {
		http.ServeFile(w, r, index)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, indexPageData{Title: "IMTTI"}); err != nil {
		logFor(r.Context()).Error("render index", "err", err)
	}
}

// staticHandler serves files from the static directory. Dotfiles and SQLite
// databases are never served.
func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.config.StaticDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hiddenPath(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func hiddenPath(p string) bool {
	for _, seg := range strings.Split(path.Clean("/"+p), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	switch path.Ext(p) {
	case ".db", ".db-wal", ".db-shm", ".lock":
		return true
	}
	return false
}
