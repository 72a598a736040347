package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a gateway failure.
type Kind int

const (
	// KindTransport covers connectivity, read, and decode failures.
	KindTransport Kind = iota
	// KindServer is a non-success HTTP status reported by the backend.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	default:
		return "transport"
	}
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	// Detail is the backend's "detail" message, empty when none was sent.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindServer {
		if e.Detail != "" {
			return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Detail)
		}
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns the underlying transport failure message.
func (e *Error) Cause() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

var errMissingToken = errors.New("response did not include an access token")

// parseDetail extracts the FastAPI-style detail field. Validation failures
// carry a list of objects instead of a string.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			msg := strings.TrimSpace(item.Msg)
			if msg == "" {
				continue
			}
			if field := lastLoc(item.Loc); field != "" {
				msg = field + ": " + msg
			}
			msgs = append(msgs, msg)
		}
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(string(envelope.Detail))
}

func lastLoc(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok {
		return s
	}
	return ""
}
