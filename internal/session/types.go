// Package session owns the client-side rules for talking to the rulebook
// backend: which operations are allowed in which order, how a second trigger
// of a running operation is ignored, and how every outcome is normalized into
// a status the presentation layer can render.
package session

import (
	"context"
	"errors"
	"maps"

	"github.com/csheth/rulebook/internal/corpus"
	"github.com/csheth/rulebook/internal/gateway"
)

// Gateway is the backend contract the orchestrator depends on.
type Gateway interface {
	Token(ctx context.Context, username, password string) (string, error)
	LoadData(ctx context.Context, token string, payload corpus.Payload) (gateway.LoadResult, error)
	Query(ctx context.Context, token, question string) (gateway.QueryResult, error)
	SessionState(ctx context.Context, token string) (map[string]any, error)
}

// Operation names one of the four user-triggered operations.
type Operation int

const (
	OpAuthenticate Operation = iota
	OpLoadCorpus
	OpAskQuestion
	OpRefreshSessionState
	operationCount
)

// Operations lists every operation in display order.
var Operations = []Operation{OpAuthenticate, OpLoadCorpus, OpAskQuestion, OpRefreshSessionState}

func (o Operation) String() string {
	switch o {
	case OpAuthenticate:
		return "authenticate"
	case OpLoadCorpus:
		return "load_corpus"
	case OpAskQuestion:
		return "ask_question"
	case OpRefreshSessionState:
		return "refresh_session_state"
	default:
		return "unknown"
	}
}

// Phase is the lifecycle position of one operation.
type Phase int

const (
	Idle Phase = iota
	InFlight
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case InFlight:
		return "in-flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Failure classifies why an operation failed.
type Failure int

const (
	FailureNone Failure = iota
	// FailureValidation is detected locally; no request was sent.
	FailureValidation
	FailureTransport
	FailureServer
)

// Status is the current state of one operation.
type Status struct {
	Phase   Phase
	Message string
	Failure Failure
}

// Stage is the client's position in the login → load → query flow.
type Stage int

const (
	StageUnauthenticated Stage = iota
	StageAuthenticated
	StageCorpusLoaded
)

func (s Stage) String() string {
	switch s {
	case StageAuthenticated:
		return "authenticated"
	case StageCorpusLoaded:
		return "corpus loaded"
	default:
		return "unauthenticated"
	}
}

// Signal tells the presentation layer that a flow milestone was reached.
type Signal int

const (
	SignalNone Signal = iota
	SignalAuthenticated
	SignalCorpusReady
)

// Credentials are held only for the duration of an Authenticate call.
type Credentials struct {
	Username string
	Password string
}

// Snapshot is the backend's opaque view of the session. A non-empty Err marks
// the error-tagged value stored after a failed refresh.
type Snapshot struct {
	Values map[string]any
	Err    string
}

// IsError reports whether the snapshot carries a failure instead of values.
func (s Snapshot) IsError() bool {
	return s.Err != ""
}

// Empty reports whether no snapshot has been stored yet.
func (s Snapshot) Empty() bool {
	return s.Values == nil && s.Err == ""
}

// Document returns the JSON-shaped value shown to the user.
func (s Snapshot) Document() map[string]any {
	if s.IsError() {
		return map[string]any{"error": s.Err}
	}
	return maps.Clone(s.Values)
}

func valuesSnapshot(values map[string]any) Snapshot {
	if values == nil {
		values = map[string]any{}
	}
	return Snapshot{Values: maps.Clone(values)}
}

// Outcome is the result of one operation call.
type Outcome struct {
	Op     Operation
	Status Status
	Signal Signal
	Err    error
	// Ignored is set when the call was dropped because the same operation
	// was already in flight.
	Ignored bool
}

// ErrInFlight is returned when an operation is re-triggered before its
// previous invocation completed.
var ErrInFlight = errors.New("operation already in flight")

// ValidationError is a local precondition failure; no request was sent.
type ValidationError struct {
	Op      Operation
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
