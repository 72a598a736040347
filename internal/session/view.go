package session

import (
	"encoding/json"
	"time"
)

// View is a read-only projection of the orchestrator for rendering. It never
// exposes the token value.
type View struct {
	Authenticated bool
	Subject       string
	ExpiresAt     time.Time
	TokenExpired  bool
	Stage         Stage
	Statuses      map[Operation]Status
	Snapshot      Snapshot
	// Stale marks a snapshot kept across a re-authentication.
	Stale     bool
	Answer    string
	HasAnswer bool
}

// Status returns the status of op, or Idle when unknown.
func (v View) Status(op Operation) Status {
	return v.Statuses[op]
}

// Busy reports whether any operation is in flight.
func (v View) Busy() bool {
	for _, st := range v.Statuses {
		if st.Phase == InFlight {
			return true
		}
	}
	return false
}

// AnswerText is what the answer area shows: the latest failure when the last
// question failed remotely, otherwise the stored answer.
func (v View) AnswerText() string {
	st := v.Status(OpAskQuestion)
	if st.Phase == Failed && st.Failure != FailureValidation {
		return st.Message
	}
	return v.Answer
}

// SnapshotJSON pretty-prints the snapshot with two-space indentation. An empty
// snapshot renders as an empty string.
func (v View) SnapshotJSON() string {
	if v.Snapshot.Empty() {
		return ""
	}
	data, err := json.MarshalIndent(v.Snapshot.Document(), "", "  ")
	if err != nil {
		return `{"error": "unprintable session state"}`
	}
	return string(data)
}

// View projects the current state.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.st
	v := View{
		Stage:     st.stage,
		Statuses:  make(map[Operation]Status, len(Operations)),
		Snapshot:  cloneSnapshot(st.snapshot),
		Stale:     st.stale,
		Answer:    st.answer,
		HasAnswer: st.hasAnswer,
	}
	for _, op := range Operations {
		v.Statuses[op] = st.status(op)
	}
	if st.token != nil {
		v.Authenticated = true
		v.Subject = st.token.Subject
		v.ExpiresAt = st.token.ExpiresAt
		v.TokenExpired = st.token.Expired(o.now())
	}
	return v
}

// Status returns the current status of op.
func (o *Orchestrator) Status(op Operation) Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st.status(op)
}

// InFlight reports whether op is currently running.
func (o *Orchestrator) InFlight(op Operation) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st.inFlight(op)
}

// HasToken reports whether an access token is held.
func (o *Orchestrator) HasToken() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st.token != nil
}

// Snapshot returns a copy of the current session snapshot.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneSnapshot(o.st.snapshot)
}

// Answer returns the last stored answer and whether one exists.
func (o *Orchestrator) Answer() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.st.answer, o.st.hasAnswer
}

func cloneSnapshot(s Snapshot) Snapshot {
	if s.Values == nil {
		return s
	}
	return valuesSnapshot(s.Values)
}
