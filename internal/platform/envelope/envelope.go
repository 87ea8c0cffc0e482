// Package envelope holds the response shape every successful mutation reports.
package envelope

import (
	"net/http"

	"collab-control-plane/backend/internal/platform/apperr"
)

// Response is a successful result: status code, payload and a human-readable message.
type Response struct {
	StatusCode int
	Payload    any
	Message    string
}

// OK returns a 200 response.
func OK(payload any, message string) *Response {
	return &Response{StatusCode: http.StatusOK, Payload: payload, Message: message}
}

// Failure is the client-visible form of an error: no internal state is carried.
type Failure struct {
	StatusCode int
	Message    string
}

// FromError converts err into a Failure using the apperr taxonomy.
func FromError(err error) Failure {
	return Failure{StatusCode: apperr.StatusCode(err), Message: apperr.Message(err)}
}
