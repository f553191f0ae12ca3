package proxy

import (
	"errors"
	"fmt"
)

// Upstream error codes this client gives special treatment.
const (
	codeSuccess            = "Success"
	codeDuplicateScheduler = "SchedulerAlreadyExists"
	codeValidationFailed   = "ValidationFailed"
)

// HTTPError is a non-200 response from the proxy. The raw body is preserved
// for diagnostics.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("proxy: status %d: %s", e.Status, e.Body)
}

// ProtocolError means the response body was not the expected JSON envelope,
// typically a misconfigured endpoint returning an HTML login page.
type ProtocolError struct {
	Snippet string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("proxy: response is not a valid envelope: %s", e.Snippet)
}

// AppError is an application-level failure reported inside the envelope
// (code != "Success"). Details carries any structured payload the proxy
// attached, e.g. per-field validation messages.
type AppError struct {
	Code    string
	Message string
	Details []byte
}

func (e *AppError) Error() string {
	return fmt.Sprintf("proxy: %s: %s", e.Code, e.Message)
}

// TransportError is a network-level failure. Retrying is the caller's
// decision; this client never retries on its own.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("proxy: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsDuplicateScheduler reports whether err is the upstream uniqueness
// violation on (source credentials, source scheduler).
func IsDuplicateScheduler(err error) bool {
	var app *AppError
	return errors.As(err, &app) && app.Code == codeDuplicateScheduler
}

// IsValidationFailed reports whether err is an upstream input-validation
// rejection.
func IsValidationFailed(err error) bool {
	var app *AppError
	return errors.As(err, &app) && app.Code == codeValidationFailed
}

// IsTransient reports whether err is safe to retry after re-checking state:
// transport failures and 5xx responses.
func IsTransient(err error) bool {
	var tr *TransportError
	if errors.As(err, &tr) {
		return true
	}
	var he *HTTPError
	return errors.As(err, &he) && he.Status >= 500
}
