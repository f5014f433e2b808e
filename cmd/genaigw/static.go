package main

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ferro-labs/genai-gateway/internal/apierror"
)

// notFoundHandler serves the built frontend from dir for paths no route
// matched, falling back to index.html so client-side routing works. API
// paths and requests without a static dir get a JSON 404.
func notFoundHandler(dir string) http.HandlerFunc {
	var files http.Handler
	if dir != "" {
		files = http.FileServer(http.Dir(dir))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if files == nil || strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" ||
			(r.Method != http.MethodGet && r.Method != http.MethodHead) {
			notFoundJSON(w, r)
			return
		}

		clean := path.Clean("/" + r.URL.Path)
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			notFoundJSON(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}
}

func notFoundJSON(w http.ResponseWriter, r *http.Request) {
	apierror.WritePayload(w, r, apierror.Payload{
		Code:    apierror.CodeNotFound,
		Message: "no route for " + r.Method + " " + r.URL.Path,
		Status:  http.StatusNotFound,
	})
}
