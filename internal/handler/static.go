package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
)

// ServeUploads serves stored files by identifier so local locators resolve.
// Directory listings, symlinks and hidden files (in-flight temp uploads) are
// never served.
func ServeUploads(fsys fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("filename")
		if name == "" || strings.HasPrefix(name, ".") || !fs.ValidPath(name) || strings.Contains(name, "/") {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "File not found")
			return
		}

		info, err := fs.Lstat(fsys, name)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "File not found")
			return
		}
		if err != nil {
			writeServiceError(w, r, err, "Error reading file")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeFileFS(w, r, fsys, name)
	}
}
