package http

import (
	"net/http"
	"strconv"

	"github.com/prepstack/prepstack/internal/audit"
)

// ListEventsHandler pages through the audit log, oldest first.
// ?after=<offset>&limit=<n>
func ListEventsHandler(events *audit.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := events.List(r.Context(), after, limit)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": list})
	}
}
