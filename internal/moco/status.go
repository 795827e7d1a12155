package moco

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConverting Status = "CONVERTING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

var statusLabels = map[Status]string{
	StatusPending:    "preparing",
	StatusConverting: "converting",
	StatusInProgress: "transcribing",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
	StatusCancelled:  "cancelled",
}

// Label returns a human-readable description, or the raw status when unknown.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusCancelled
}

// APIError is a non-2xx response from the transcription API.
type APIError struct {
	StatusCode int
	Body       string
}

func newAPIError(code int, body []byte) *APIError {
	return &APIError{StatusCode: code, Body: strings.TrimSpace(string(body))}
}

func (e *APIError) Error() string {
	msg := describeStatus(e.StatusCode)
	if e.Body == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, truncate(e.Body, 200))
}

func describeStatus(code int) string {
	switch {
	case code == http.StatusBadRequest:
		return "invalid request (status 400)"
	case code == http.StatusUnauthorized:
		return "API key is invalid (status 401)"
	case code == http.StatusForbidden:
		return "access denied (status 403)"
	case code == http.StatusNotFound:
		return "resource not found (status 404)"
	case code >= 500:
		return fmt.Sprintf("server error (status %d)", code)
	default:
		return fmt.Sprintf("unexpected status %d", code)
	}
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
