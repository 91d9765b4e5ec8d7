package meter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// maxBatch bounds the count accepted in one request.
const maxBatch = 10000

// EventHandler returns an HTTP handler that records supervisor events posted
// by an out-of-process supervisor. The kind is the "kind" path value and an
// optional "count" query parameter gives the number of events (default 1).
// It answers 204 on success, 400 for a bad count and 404 for an unknown kind.
func EventHandler(s *SupervisorMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int64(1)
		if raw := r.URL.Query().Get("count"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed < 1 || parsed > maxBatch {
				writeError(w, http.StatusBadRequest, "count must be an integer between 1 and "+strconv.Itoa(maxBatch))
				return
			}
			n = parsed
		}

		if err := s.Record(r.Context(), r.PathValue("kind"), n); err != nil {
			code := http.StatusInternalServerError
			switch {
			case errors.Is(err, ErrUnknownKind):
				code = http.StatusNotFound
			case errors.Is(err, ErrInvalidCount):
				code = http.StatusBadRequest
			}
			writeError(w, code, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RegisterHandlers registers the event endpoint on the given mux, wrapped by
// mw with the first middleware outermost.
func RegisterHandlers(mux *http.ServeMux, s *SupervisorMetrics, mw ...func(http.Handler) http.Handler) {
	var h http.Handler = EventHandler(s)
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	mux.Handle("POST /supervisor/events/{kind}", h)
}
