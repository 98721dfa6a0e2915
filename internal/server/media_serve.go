package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleMedia range-serves catalog video files from the media directory.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	path, ok := resolveMediaPath(s.opts.MediaDir, rel)
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	ServeVideoFile(w, r, path)
}

// resolveMediaPath joins rel onto root and refuses anything that escapes root.
func resolveMediaPath(root, rel string) (string, bool) {
	if root == "" || rel == "" {
		return "", false
	}
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	full := filepath.Join(cleanRoot, filepath.FromSlash(filepath.Clean("/"+rel)))
	within, err := filepath.Rel(cleanRoot, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func ServeVideoFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "file stat failed")
		return
	}
	if st.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	// Content-Type best effort
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mkv":
		w.Header().Set("Content-Type", "video/x-matroska")
	case ".mp4", ".m4v":
		w.Header().Set("Content-Type", "video/mp4")
	case ".webm":
		w.Header().Set("Content-Type", "video/webm")
	}

	// ServeContent supports Range if the reader is seekable (os.File is).
	http.ServeContent(w, r, filepath.Base(path), st.ModTime(), f)
}
