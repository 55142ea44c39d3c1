package utilities

import (
	"encoding/json"
	"net/http"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
)

// Envelope is the single response shape used by every endpoint. Exactly one
// of Data or Error is set.
type Envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Data: data})
}

// WriteErrorCode writes a failure envelope with an explicit status and code.
func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

// WriteError classifies err and writes the matching failure envelope.
func WriteError(w http.ResponseWriter, err error) {
	c := common.Classify(err)
	WriteErrorCode(w, c.Status, c.Code, c.Message)
}

// DecodeJSON reads a JSON body into v. Bodies over 1 MiB are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.InvalidInput("invalid payload")
	}
	return nil
}
