package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is returned for any non-2xx backend response.
type APIError struct {
	Status  int
	Message string // backend "message" field, may be empty
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: status %d", e.Status)
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}
	var env struct {
		Message string `json:"message"`
	}
	var str string
	if err := json.Unmarshal(body, &env); err == nil {
		e.Message = strings.TrimSpace(env.Message)
	} else if err := json.Unmarshal(body, &str); err == nil {
		e.Message = strings.TrimSpace(str)
	} else if s := strings.TrimSpace(string(body)); s != "" && len(s) < 512 && !strings.HasPrefix(s, "<") {
		// Some controllers answer with a bare string body.
		e.Message = s
	}
	return e
}

// StatusOf returns the HTTP status carried by err, or 0 for transport errors.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// MessageOf returns the backend's message for err, or fallback when none.
func MessageOf(err error, fallback string) string {
	var ae *APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}
