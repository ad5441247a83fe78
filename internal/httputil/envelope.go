// Package httputil provides the uniform response envelope returned by every
// operation.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/lockcase/backend/internal/errors"
)

// Envelope is the wire shape of every response.
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody carries the classified error; raw internals are never exposed.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteSuccess writes the success envelope. Data may be nil for operations
// that return only an acknowledgment.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	write(w, Envelope{
		StatusCode: http.StatusOK,
		Message:    "Success",
		Data:       data,
	})
}

// WriteFailure classifies err and writes the failure envelope. The HTTP
// status mirrors the envelope's statusCode.
func WriteFailure(w http.ResponseWriter, err error) {
	se := errors.Classify(err)
	write(w, Envelope{
		StatusCode: se.HTTPStatus,
		Message:    "Error",
		Error:      &ErrorBody{Code: string(se.Code), Message: se.Message},
	})
}

// WriteStatus writes a failure envelope with an explicit status and code, for
// conditions outside the operation error taxonomy (e.g. rate limiting).
func WriteStatus(w http.ResponseWriter, status int, code, message string) {
	write(w, Envelope{
		StatusCode: status,
		Message:    "Error",
		Error:      &ErrorBody{Code: code, Message: message},
	})
}

func write(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	_ = json.NewEncoder(w).Encode(env)
}
