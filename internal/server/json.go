package server

import (
	"encoding/json"
	"net/http"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
)

// maxRequestBodyBytes caps decoded JSON request bodies.
const maxRequestBodyBytes = 10 << 20 // 10MB

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func decodeJSONRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func clampQueryParam(r *http.Request, name string, max int) string {
	v := r.URL.Query().Get(name)
	if len(v) > max {
		return v[:max]
	}
	return v
}

func parseIntParam(r *http.Request, name string, def int) int {
	v := clampQueryParam(r, name, 32)
	if v == "" {
		return def
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// statusForError maps a goblinerr.Kind to the HTTP status code handlers
// report it as, in one place. AgentNotFound maps to 500: it signals a
// misconfigured catalog reference, not a missing resource, preserved from
// the source system's behavior. Anything not a GoblinError, or a kind this
// table doesn't know about, falls back to 500.
func statusForError(err error) int {
	switch goblinerr.KindOf(err) {
	case goblinerr.KindAgentNotFound:
		return http.StatusInternalServerError
	case goblinerr.KindParse, goblinerr.KindPermissionDenied:
		return http.StatusBadRequest
	case goblinerr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// pathTail returns the path segment following prefix, e.g. pathTail(r,
// "/api/history/") on "/api/history/writer" returns "writer".
func pathTail(r *http.Request, prefix string) string {
	if len(r.URL.Path) <= len(prefix) {
		return ""
	}
	return r.URL.Path[len(prefix):]
}
