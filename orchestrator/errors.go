package orchestrator

import (
	"errors"
	"strings"
)

var (
	// ErrNoFinalResponse is reported when a provider stream ends without a final event.
	ErrNoFinalResponse = errors.New("no final response")
	// ErrResponseTooShort is reported for final replies below the minimum length.
	ErrResponseTooShort = errors.New("response too short")
	// ErrToolFailure is reported when the reply contains a refusal marker.
	ErrToolFailure = errors.New("tool failure")
	// ErrAttemptsExhausted is returned when every attempt failed and the role has no fallback.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrNilAgent is returned for a nil agent.
	ErrNilAgent = errors.New("agent must not be nil")
	// ErrEmptyInput is returned when the prompt carries neither text nor attachments.
	ErrEmptyInput = errors.New("input must not be empty")
)

// DefaultRetryableMarkers are matched case-sensitively against failure messages.
var DefaultRetryableMarkers = []string{
	"Tool use with function calling is unsupported",
	"INVALID_ARGUMENT",
	"Session not found",
	"no final response",
	"response too short",
	"tool failure",
}

// DefaultRefusalMarkers are matched case-insensitively against reply text.
var DefaultRefusalMarkers = []string{
	"i cannot",
	"unable to access",
}

var markerClasses = map[string]string{
	"Tool use with function calling is unsupported": "tools_unsupported",
	"INVALID_ARGUMENT":   "invalid_argument",
	"Session not found":  "session_not_found",
	"no final response":  "no_final_response",
	"response too short": "response_too_short",
	"tool failure":       "tool_failure",
}

// Classifier decides whether a failure is worth another attempt.
type Classifier struct {
	markers []string
}

// NewClassifier returns a Classifier for the given markers. An empty list
// selects DefaultRetryableMarkers.
func NewClassifier(markers []string) *Classifier {
	if len(markers) == 0 {
		markers = DefaultRetryableMarkers
	}

	return &Classifier{markers: append([]string(nil), markers...)}
}

// Match returns the first retryable marker contained in err's message.
func (c *Classifier) Match(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	msg := err.Error()
	for _, m := range c.markers {
		if m != "" && strings.Contains(msg, m) {
			return m, true
		}
	}

	return "", false
}

// IsRetryable reports whether err matches one of the retryable markers.
func (c *Classifier) IsRetryable(err error) bool {
	_, ok := c.Match(err)
	return ok
}

// Class returns a metrics friendly label for err.
func (c *Classifier) Class(err error) string {
	m, ok := c.Match(err)
	if !ok {
		return "terminal"
	}

	if class, known := markerClasses[m]; known {
		return class
	}

	return "retryable"
}
