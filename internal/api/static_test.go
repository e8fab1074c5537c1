package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIndexFallsBackToBuiltinPage(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, "GET", "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "IMTTI Server") {
		t.Fatalf("expected built-in index page, got %q", w.Body.String())
	}
}

func TestStaticFilesServed(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("index.html", "<h1>custom home</h1>")
	write("app.js", "console.log('hi')")
	write(".env", "SECRET=1")
	write("imtti.db", "sqlite")

	srv, _ := newTestServerWithConfig(t, func(cfg *Config) {
		cfg.StaticDir = dir
	})

	w := doRequest(srv, "GET", "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "custom home") {
		t.Fatalf("expected custom index, got %d %q", w.Code, w.Body.String())
	}

	w = doRequest(srv, "GET", "/app.js", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "console.log") {
		t.Fatalf("expected app.js, got %d", w.Code)
	}

	for _, path := range []string{"/.env", "/imtti.db", "/missing.css"} {
		w = doRequest(srv, "GET", path, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("GET %s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestHiddenPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/index.html", false},
		{"/css/site.css", false},
		{"/.git/config", true},
		{"/a/.hidden", true},
		{"/data/imtti.db", true},
		{"/data/imtti.db-wal", true},
		{"/store.lock", true},
	}
	for _, tc := range tests {
		if got := hiddenPath(tc.path); got != tc.want {
			t.Errorf("hiddenPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
