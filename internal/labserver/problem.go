package labserver

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound     = "https://netcanvas.dev/problems/not-found"
	ProblemTypeBadRequest   = "https://netcanvas.dev/problems/bad-request"
	ProblemTypeInternal     = "https://netcanvas.dev/problems/internal-error"
	ProblemTypeUnauthorized = "https://netcanvas.dev/problems/unauthorized"
)

// Problem is an RFC 7807 body. The client reads Detail as the message it
// shows the user.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes p as application/problem+json.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func problemFor(status int) (typ, title string) {
	switch status {
	case http.StatusNotFound:
		return ProblemTypeNotFound, "Not Found"
	case http.StatusBadRequest:
		return ProblemTypeBadRequest, "Bad Request"
	case http.StatusUnauthorized:
		return ProblemTypeUnauthorized, "Unauthorized"
	default:
		return ProblemTypeInternal, "Internal Server Error"
	}
}

// writeError reports err. Lab errors keep their status and detail; ack
// errors become a 200 {"success": false} body; anything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var le *Error
	if !errors.As(err, &le) {
		le = &Error{Status: http.StatusInternalServerError, Detail: "internal error"}
	}
	if le.Ack {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": le.Detail})
		return
	}
	typ, title := problemFor(le.Status)
	WriteProblem(w, Problem{
		Type:     typ,
		Title:    title,
		Status:   le.Status,
		Detail:   le.Detail,
		Instance: r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAck(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
