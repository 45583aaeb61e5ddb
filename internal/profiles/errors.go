package profiles

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the profile backend.
type APIError struct {
	Status  int
	Message string          // "error" field of the body, or the status text
	Body    json.RawMessage // raw response body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("profiles: HTTP %d: %s", e.Status, e.Message)
}

// newAPIError builds an APIError from a response body. Bodies are expected to
// be JSON objects with at least an "error" field; anything else is kept raw.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		e.Message = parsed.Error
	} else {
		e.Message = http.StatusText(status)
	}
	return e
}
