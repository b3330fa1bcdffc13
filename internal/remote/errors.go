package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/HerbHall/netcanvas/internal/auth"
)

// ErrAuthExpired is returned when the credential is missing, expired or
// rejected with 401. The credential has already been cleared.
var ErrAuthExpired = auth.ErrExpired

// ErrNetworkUnavailable is wrapped by the RejectedError returned when the
// service cannot be reached at all.
var ErrNetworkUnavailable = errors.New("network unavailable")

// RejectedError reports that the service refused an operation. Message is
// the server's own explanation and is meant to be shown verbatim.
type RejectedError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RejectedError) Error() string {
	return e.Message
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Message extracts the text to show the user for err: the server message
// of a rejection, or fallback for anything else.
func Message(err error, fallback string) string {
	var re *RejectedError
	if errors.As(err, &re) && re.Message != "" && !errors.Is(err, ErrNetworkUnavailable) {
		return re.Message
	}
	return fallback
}

// errorBody covers the error envelopes the service produces.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Title   string          `json:"title"`
}

// rejection builds a RejectedError from a non-2xx response body.
func rejection(status int, body []byte) *RejectedError {
	msg := fmt.Sprintf("HTTP error! status: %d", status)
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case len(eb.Detail) > 0:
			var s string
			if json.Unmarshal(eb.Detail, &s) == nil {
				msg = s
			} else {
				msg = string(eb.Detail)
			}
		case eb.Error != "":
			msg = eb.Error
		case eb.Message != "":
			msg = eb.Message
		case eb.Title != "":
			msg = eb.Title
		}
	}
	return &RejectedError{StatusCode: status, Message: msg}
}

// mapTransportError classifies a failure of the HTTP round trip itself.
// Cancellation is passed through untouched so callers can tell it apart.
func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	reason := "service unreachable"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		reason = "request timed out"
	} else if msg := err.Error(); !strings.Contains(msg, "connection refused") &&
		!strings.Contains(msg, "no such host") &&
		!strings.Contains(msg, "dial tcp") {
		reason = "transport error"
	}
	return &RejectedError{
		Message: "network unavailable: " + reason,
		Err:     fmt.Errorf("%w: %v", ErrNetworkUnavailable, err),
	}
}
