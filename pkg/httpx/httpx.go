package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Request bodies are consignments at most a few megabytes large;
// anything bigger is rejected before decoding.
const maxBodyBytes = 16 << 20

func NewRequestID() string { return "req_" + uuid.NewString() }

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	RequestID string    `json:"request_id"`
	Error     errorBody `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, errorResponse{
		RequestID: NewRequestID(),
		Error:     errorBody{Code: code, Message: message, Details: details},
	})
}
