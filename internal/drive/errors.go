package drive

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// rateLimitMessage prefixes the error Drive returns when a user exceeds
// the per-user quota.
const rateLimitMessage = "User Rate Limit Exceeded"

// APIError is a failure reported by the Drive or token endpoint. It carries
// the upstream HTTP status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// StatusCode lets the dispatcher answer with the upstream status
func (e *APIError) StatusCode() int {
	return e.Status
}

func (e *APIError) rateLimited() bool {
	return strings.HasPrefix(e.Message, rateLimitMessage)
}

// IsNotFound reports whether err means the requested path does not exist
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// errorBody is the JSON error envelope of the Drive API
type errorBody struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// tokenError converts a failed access token refresh into an APIError
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return err
	}
	status := http.StatusUnauthorized
	if re.Response != nil && re.Response.StatusCode >= 400 {
		status = re.Response.StatusCode
	}
	msg := re.ErrorDescription
	if msg == "" {
		msg = re.ErrorCode
	}
	if msg == "" {
		msg = "access token refresh failed"
	}
	return &APIError{Status: status, Message: msg}
}
