package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeForbidden              = "FORBIDDEN"
	CodePasswordChangeRequired = "PASSWORD_CHANGE_REQUIRED"
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeLastController         = "LAST_CONTROLLER"
	CodeRateLimited            = "RATE_LIMITED"
	CodeRequestTimeout         = "REQUEST_TIMEOUT"
	CodeInternal               = "INTERNAL_ERROR"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Envelope is the body of every non-2xx response.
type Envelope struct {
	Message    string `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Code       string `json:"code"`
}

// TimestampLayout matches the millisecond ISO-8601 form the frontend parses.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func (e *APIError) Envelope(path string) Envelope {
	status := e.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return Envelope{
		Message:    e.Message,
		Error:      http.StatusText(status),
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(TimestampLayout),
		Path:       path,
		Code:       e.Code,
	}
}

// Write renders err as the error envelope. Errors that are not *APIError
// become a generic 500 so store or driver detail never reaches the client.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = New(CodeInternal, "Unexpected server error", "", http.StatusInternalServerError)
	}

	path := ""
	if r != nil && r.URL != nil {
		path = r.URL.RequestURI()
	}

	envelope := apiErr.Envelope(path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(envelope.StatusCode)
	_ = json.NewEncoder(w).Encode(envelope)
}
