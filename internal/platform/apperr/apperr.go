// Package apperr carries the client's error taxonomy: local validation
// failures, transport failures, and HTTP error responses. Controllers catch
// these at the boundary of each intent and convert them into their reactive
// error field; nothing here is meant to escape to a global handler.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type AppError struct {
	Code    string
	Message string // user-facing text
	Status  int    // HTTP status, 0 for local/transport errors
	Body    string // raw response body, for diagnostics
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Validation reports input rejected before any network call.
func Validation(code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// NoConnection wraps a transport-level failure (DNS, refused connection,
// timeout). The cause is kept for logging but never shown verbatim.
func NoConnection(err error) *AppError {
	return &AppError{
		Code:    "no_connection",
		Message: "no connection to server",
		Err:     err,
	}
}

// bodyPatterns maps known server problem-detail fragments to specific
// user-facing messages. Checked before the generic status mapping.
var bodyPatterns = []struct {
	fragment string
	code     string
	message  string
}{
	{"email already", "email_taken", "email already registered"},
	{"email_taken", "email_taken", "email already registered"},
	{"already voted", "already_voted", "you already voted in this poll"},
	{"already_voted", "already_voted", "you already voted in this poll"},
	{"poll_locked", "poll_locked", "poll options are locked once voted"},
}

// FromResponse maps an HTTP error status and its raw body to a user-facing
// error: known body patterns first, then status 400 as "invalid data",
// status 401 as "invalid credentials", and anything else as a generic
// server error carrying the status.
func FromResponse(status int, body []byte) *AppError {
	raw := string(body)
	lower := strings.ToLower(raw)

	for _, p := range bodyPatterns {
		if strings.Contains(lower, p.fragment) {
			return &AppError{Code: p.code, Message: p.message, Status: status, Body: raw}
		}
	}

	switch status {
	case 400:
		return &AppError{Code: "invalid_data", Message: "invalid data", Status: status, Body: raw}
	case 401:
		return &AppError{Code: "invalid_credentials", Message: "invalid credentials", Status: status, Body: raw}
	default:
		return &AppError{
			Code:    "server_error",
			Message: fmt.Sprintf("server error (%d)", status),
			Status:  status,
			Body:    raw,
		}
	}
}

// UserMessage extracts the message to surface for any error reaching a
// controller boundary. Unknown error types are treated as transport
// failures, matching the fail-generic policy for unexpected causes.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "no connection to server"
}
