package session

// state is the orchestrator's durable data. Every transition takes a state by
// value and returns the next one; nothing here performs I/O.
type state struct {
	token    *AccessToken
	stage    Stage
	statuses [operationCount]Status
	snapshot Snapshot
	// stale marks a snapshot carried over from before a re-authentication.
	stale     bool
	answer    string
	hasAnswer bool
}

func (s state) status(op Operation) Status {
	return s.statuses[op]
}

func (s state) inFlight(op Operation) bool {
	return s.statuses[op].Phase == InFlight
}

func (s state) begin(op Operation) state {
	s.statuses[op] = Status{Phase: InFlight}
	return s
}

// fail records a failure. Durable data is left as it was.
func (s state) fail(op Operation, failure Failure, message string) state {
	s.statuses[op] = Status{Phase: Failed, Message: message, Failure: failure}
	return s
}

func (s state) succeed(op Operation, message string) state {
	s.statuses[op] = Status{Phase: Succeeded, Message: message}
	return s
}

// authenticated stores a fresh token. Any earlier corpus is no longer assumed
// to exist server-side, so dependent statuses return to idle and a kept
// snapshot is flagged stale. Operations still running keep their in-flight
// status so their guard stays effective.
func (s state) authenticated(token AccessToken, message string) state {
	s.token = &token
	s.stage = StageAuthenticated
	for _, op := range []Operation{OpLoadCorpus, OpAskQuestion, OpRefreshSessionState} {
		if !s.inFlight(op) {
			s.statuses[op] = Status{}
		}
	}
	if !s.snapshot.Empty() {
		s.stale = true
	}
	return s.succeed(OpAuthenticate, message)
}

func (s state) corpusLoaded(message string, values map[string]any) state {
	s.stage = StageCorpusLoaded
	s = s.replaceSnapshot(valuesSnapshot(values))
	return s.succeed(OpLoadCorpus, message)
}

func (s state) answered(answer string, values map[string]any) state {
	s.answer = answer
	s.hasAnswer = true
	s = s.replaceSnapshot(valuesSnapshot(values))
	return s.succeed(OpAskQuestion, "answer received")
}

func (s state) refreshed(values map[string]any) state {
	s = s.replaceSnapshot(valuesSnapshot(values))
	return s.succeed(OpRefreshSessionState, "session state refreshed")
}

// refreshFailed replaces the snapshot with an error-tagged value: a refresh
// asks for current truth, and the failure is that truth.
func (s state) refreshFailed(failure Failure, message string) state {
	s = s.replaceSnapshot(Snapshot{Err: message})
	return s.fail(OpRefreshSessionState, failure, message)
}

func (s state) replaceSnapshot(snap Snapshot) state {
	s.snapshot = snap
	s.stale = false
	return s
}
