package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	RequestID string      `json:"request_id"`
	Error     errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRequestID() string { return "req_" + uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	id := w.Header().Get(requestIDHeader)
	if id == "" {
		id = newRequestID()
	}
	writeJSON(w, status, errorBody{
		RequestID: id,
		Error:     errorDetail{Code: code, Message: message},
	})
}
