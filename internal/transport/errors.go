package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// StatusError reports a non-success HTTP status from the chat server,
// returned before any stream bytes are produced.
type StatusError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server error: %s - %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server error: %s", e.Status)
}

// RateLimited reports whether the server rejected the request for quota
// reasons. The caller may surface the cooldown hint from Detail.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// errorDetail is the server's error envelope. The detail field is either a
// plain string or an object with a message.
type errorDetail struct {
	Detail json.RawMessage `json:"detail"`
}

// parseDetail extracts a human-readable message from an error body.
func parseDetail(body []byte) string {
	var envelope errorDetail
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return string(body)
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Detail, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(envelope.Detail)
}
