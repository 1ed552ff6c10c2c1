// Package webui serves the pre-built single-page editor UI.
package webui

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type spaHandler struct {
	dist string
}

// NewSPAHandler serves files from dist. Unknown paths and directories get
// dist/index.html so client-side routes resolve.
func NewSPAHandler(dist string) http.Handler {
	return &spaHandler{dist: dist}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := filepath.Clean("/" + r.URL.Path)
	indexPath := filepath.Join(h.dist, "index.html")
	if clean != "/" {
		candidate := filepath.Join(h.dist, strings.TrimPrefix(clean, "/"))
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			http.ServeFile(w, r, candidate)
			return
		}
	}
	if _, err := os.Stat(indexPath); err != nil {
		http.Error(w, "UI not built", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, indexPath)
}
