package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/prepstack/prepstack/internal/storage"
)

// MountUploads serves stored media (synthesized listening recordings)
// under /uploads/.
func MountUploads(r chi.Router, blobs storage.BlobStore) {
	r.Get("/uploads/*", func(w http.ResponseWriter, req *http.Request) {
		key := strings.TrimPrefix(req.URL.Path, "/uploads/")
		if key == "" || strings.Contains(key, "..") {
			http.Error(w, "bad key", http.StatusBadRequest)
			return
		}
		rc, err := blobs.Get(key)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		if strings.HasSuffix(key, ".mp3") {
			w.Header().Set("Content-Type", "audio/mpeg")
		}
		_, _ = io.Copy(w, rc)
	})
}
