package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/csheth/rulebook/internal/corpus"
	"github.com/csheth/rulebook/internal/gateway"
)

// NoAnswerPlaceholder replaces blank answers from the backend.
const NoAnswerPlaceholder = "No answer received."

const (
	msgLoginSucceeded = "Logged in"
	msgLoginFallback  = "login failed"

	msgLoadNoToken      = "please authenticate before loading data"
	msgLoadMissingFiles = "both files required: choose a PDF document and a JSON seed"
	msgLoadSucceeded    = "Data loaded successfully!"
	msgLoadFallback     = "failed to load data"

	msgAskNoToken     = "please authenticate first"
	msgAskBlank       = "please enter a question before submitting"
	msgAnswerFallback = "no answer received"

	msgRefreshNoToken  = "please authenticate before refreshing session state"
	msgRefreshFallback = "failed to get session state"
)

// Orchestrator is the single owner of authentication, corpus, and query
// state for one client instance. It is safe for concurrent use: the four
// operations may run at the same time, but each at most once.
//
// Snapshot writes are last-writer-wins by completion order. A refresh and a
// question finishing out of order both carry a valid backend view, so no
// ordering is imposed between them.
type Orchestrator struct {
	gw  Gateway
	log *zap.Logger
	now func() time.Time

	mu sync.Mutex
	st state
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger routes operation logs to the given logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithClock overrides the time source used for durations and token expiry.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns an unauthenticated orchestrator backed by gw.
func New(gw Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:  gw,
		log: zap.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.Named("session")
	return o
}

// Authenticate exchanges credentials for an access token. A failure leaves
// any existing token exactly as it was.
func (o *Orchestrator) Authenticate(ctx context.Context, creds Credentials) Outcome {
	const op = OpAuthenticate
	o.mu.Lock()
	if o.st.inFlight(op) {
		o.mu.Unlock()
		return o.ignored(op)
	}
	o.st = o.st.begin(op)
	o.mu.Unlock()

	started := o.now()
	raw, err := o.gw.Token(ctx, creds.Username, creds.Password)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		failure, message := describeFailure(err, msgLoginFallback)
		o.st = o.st.fail(op, failure, message)
		o.logFailure(op, started, failure, err, zap.String("username", creds.Username))
		return Outcome{Op: op, Status: o.st.status(op), Err: err}
	}
	token := ParseAccessToken(raw)
	o.st = o.st.authenticated(token, msgLoginSucceeded)
	o.log.Info("operation succeeded",
		zap.Stringer("op", op),
		zap.String("username", creds.Username),
		zap.String("subject", token.Subject),
		zap.Duration("duration", o.now().Sub(started)),
	)
	return Outcome{Op: op, Status: o.st.status(op), Signal: SignalAuthenticated}
}

// LoadCorpus uploads the document and seed to start a backend session. The
// token is checked before the payload so the message reflects the earlier
// missing step.
func (o *Orchestrator) LoadCorpus(ctx context.Context, payload corpus.Payload) Outcome {
	const op = OpLoadCorpus
	o.mu.Lock()
	if o.st.inFlight(op) {
		o.mu.Unlock()
		return o.ignored(op)
	}
	if o.st.token == nil {
		defer o.mu.Unlock()
		return o.rejectLocked(op, msgLoadNoToken)
	}
	if !payload.Complete() {
		defer o.mu.Unlock()
		return o.rejectLocked(op, msgLoadMissingFiles)
	}
	token := o.st.token.Value
	o.st = o.st.begin(op)
	o.mu.Unlock()

	started := o.now()
	result, err := o.gw.LoadData(ctx, token, payload)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		failure, message := describeFailure(err, msgLoadFallback)
		o.st = o.st.fail(op, failure, message)
		o.logFailure(op, started, failure, err)
		return Outcome{Op: op, Status: o.st.status(op), Err: err}
	}
	message := strings.TrimSpace(result.Message)
	if message == "" {
		message = msgLoadSucceeded
	}
	o.st = o.st.corpusLoaded(message, result.SessionState)
	o.log.Info("operation succeeded",
		zap.Stringer("op", op),
		zap.String("document", payload.Document.Name),
		zap.String("seed", payload.Seed.Name),
		zap.Int("snapshot_keys", len(result.SessionState)),
		zap.Duration("duration", o.now().Sub(started)),
	)
	return Outcome{Op: op, Status: o.st.status(op), Signal: SignalCorpusReady}
}

// AskQuestion sends a question and stores the answer along with the
// backend's updated snapshot. On failure the snapshot is left untouched.
func (o *Orchestrator) AskQuestion(ctx context.Context, question string) Outcome {
	const op = OpAskQuestion
	question = strings.TrimSpace(question)
	o.mu.Lock()
	if o.st.inFlight(op) {
		o.mu.Unlock()
		return o.ignored(op)
	}
	if o.st.token == nil {
		defer o.mu.Unlock()
		return o.rejectLocked(op, msgAskNoToken)
	}
	if question == "" {
		defer o.mu.Unlock()
		return o.rejectLocked(op, msgAskBlank)
	}
	token := o.st.token.Value
	o.st = o.st.begin(op)
	o.mu.Unlock()

	started := o.now()
	result, err := o.gw.Query(ctx, token, question)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		failure, message := describeFailure(err, msgAnswerFallback)
		o.st = o.st.fail(op, failure, message)
		o.logFailure(op, started, failure, err)
		return Outcome{Op: op, Status: o.st.status(op), Err: err}
	}
	o.st = o.st.answered(normalizeAnswer(result.Response), result.SessionState)
	o.log.Info("operation succeeded",
		zap.Stringer("op", op),
		zap.Int("question_chars", len(question)),
		zap.Int("answer_chars", len(result.Response)),
		zap.Duration("duration", o.now().Sub(started)),
	)
	return Outcome{Op: op, Status: o.st.status(op)}
}

// RefreshSessionState replaces the snapshot with the backend's current one.
// Without a token, or on failure, the snapshot becomes an error-tagged value.
func (o *Orchestrator) RefreshSessionState(ctx context.Context) Outcome {
	const op = OpRefreshSessionState
	o.mu.Lock()
	if o.st.inFlight(op) {
		o.mu.Unlock()
		return o.ignored(op)
	}
	if o.st.token == nil {
		defer o.mu.Unlock()
		o.st = o.st.refreshFailed(FailureValidation, msgRefreshNoToken)
		return Outcome{Op: op, Status: o.st.status(op), Err: &ValidationError{Op: op, Message: msgRefreshNoToken}}
	}
	token := o.st.token.Value
	o.st = o.st.begin(op)
	o.mu.Unlock()

	started := o.now()
	values, err := o.gw.SessionState(ctx, token)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		failure, message := describeFailure(err, msgRefreshFallback)
		o.st = o.st.refreshFailed(failure, message)
		o.logFailure(op, started, failure, err)
		return Outcome{Op: op, Status: o.st.status(op), Err: err}
	}
	o.st = o.st.refreshed(values)
	o.log.Debug("operation succeeded",
		zap.Stringer("op", op),
		zap.Int("snapshot_keys", len(values)),
		zap.Duration("duration", o.now().Sub(started)),
	)
	return Outcome{Op: op, Status: o.st.status(op)}
}

// rejectLocked records a local validation failure. Callers hold o.mu.
func (o *Orchestrator) rejectLocked(op Operation, message string) Outcome {
	o.st = o.st.fail(op, FailureValidation, message)
	o.log.Debug("operation rejected locally", zap.Stringer("op", op), zap.String("reason", message))
	return Outcome{Op: op, Status: o.st.status(op), Err: &ValidationError{Op: op, Message: message}}
}

func (o *Orchestrator) ignored(op Operation) Outcome {
	o.log.Debug("operation already in flight", zap.Stringer("op", op))
	return Outcome{Op: op, Status: Status{Phase: InFlight}, Err: ErrInFlight, Ignored: true}
}

func (o *Orchestrator) logFailure(op Operation, started time.Time, failure Failure, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.Stringer("op", op),
		zap.Error(err),
		zap.Bool("transport", failure == FailureTransport),
		zap.Duration("duration", o.now().Sub(started)),
	)
	o.log.Warn("operation failed", fields...)
}

// describeFailure maps a gateway error onto the status taxonomy. Backend
// detail is surfaced verbatim; otherwise the per-operation fallback is used.
func describeFailure(err error, fallback string) (Failure, string) {
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		if gerr.Kind == gateway.KindServer {
			if detail := strings.TrimSpace(gerr.Detail); detail != "" {
				return FailureServer, detail
			}
			return FailureServer, fallback
		}
		return FailureTransport, "transport error: " + gerr.Cause()
	}
	return FailureTransport, "transport error: " + err.Error()
}

func normalizeAnswer(answer string) string {
	if strings.TrimSpace(answer) == "" {
		return NoAnswerPlaceholder
	}
	return answer
}
