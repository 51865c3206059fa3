package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/prepstack/prepstack/internal/exam"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// storeError maps store lookups onto 404 vs 500.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, exam.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "not found")
		return
	}
	errorJSON(w, http.StatusInternalServerError, err.Error())
}
