// Package apierror is the single place HTTP handlers turn errors into JSON
// responses. Unknown errors become a generic 500; their detail is logged,
// never sent.
package apierror

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ayush/estate-marketplace/internal/logging"
)

// Error is an error with a client-safe message and an HTTP status.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Body is the shape of every error response.
type Body struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statuscode"`
	Message    string `json:"message"`
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

// Unauthenticated is a missing credential or failed login.
func Unauthenticated(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

// Unauthorized is an authenticated caller acting on another user's account.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

// Internal wraps err behind the generic 500 message.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: InternalMessage, Err: err}
}

// InternalMessage is the only text clients see for unexpected failures.
const InternalMessage = "Internal Server Error"

// Write responds with err's status and message. Errors that are not *Error
// are reported as 500 with the generic message. Every 5xx is logged.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal(err)
	}

	status := apiErr.Status
	message := apiErr.Message
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).Str("path", r.URL.Path).
			Msg("request failed")
	}
	if status == http.StatusInternalServerError {
		message = InternalMessage
	}

	WriteJSON(w, status, Body{Success: false, StatusCode: status, Message: message})
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("encode response")
	}
}
