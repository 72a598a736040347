package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/rulebook/internal/corpus"
	"github.com/csheth/rulebook/internal/session"
	"github.com/csheth/rulebook/internal/transcript"
)

type loginResultMsg struct {
	outcome session.Outcome
}

type loadResultMsg struct {
	outcome session.Outcome
	summary corpus.Summary
	// readErr is set when a chosen file could not be read; the orchestrator
	// still validated the payload.
	readErr error
}

type askResultMsg struct {
	question string
	askedAt  time.Time
	outcome  session.Outcome
}

type refreshResultMsg struct {
	outcome session.Outcome
}

type exportResultMsg struct {
	path  string
	count int
	err   error
}

func outcomeErr(out session.Outcome) error {
	if out.Status.Phase == session.Succeeded {
		return nil
	}
	return out.Err
}

func loginJob(orch *session.Orchestrator, creds session.Credentials) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		out := orch.Authenticate(ctx, creds)
		return loginResultMsg{outcome: out}, outcomeErr(out)
	}
}

// loadCorpusJob reads both files off the UI goroutine. A missing or
// unreadable file leaves its half of the payload empty, which the
// orchestrator reports as a local validation failure.
func loadCorpusJob(orch *session.Orchestrator, pdfPath, jsonPath string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		doc, docErr := corpus.ReadFile(pdfPath)
		seed, seedErr := corpus.ReadFile(jsonPath)
		payload := corpus.Payload{Document: doc, Seed: seed}
		out := orch.LoadCorpus(ctx, payload)
		msg := loadResultMsg{outcome: out, summary: corpus.Inspect(payload)}
		if docErr != nil {
			msg.readErr = docErr
		} else if seedErr != nil {
			msg.readErr = seedErr
		}
		return msg, outcomeErr(out)
	}
}

func askQuestionJob(orch *session.Orchestrator, question string) jobRunner {
	askedAt := time.Now()
	return func(ctx context.Context) (tea.Msg, error) {
		out := orch.AskQuestion(ctx, question)
		return askResultMsg{question: question, askedAt: askedAt, outcome: out}, outcomeErr(out)
	}
}

func refreshStateJob(orch *session.Orchestrator) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		out := orch.RefreshSessionState(ctx)
		return refreshResultMsg{outcome: out}, outcomeErr(out)
	}
}

// exportTranscriptJob copies the history before the job runs so later
// questions do not race the write.
func exportTranscriptJob(history *transcript.Transcript, path string, meta transcript.Export) jobRunner {
	snapshot := transcript.New()
	for _, entry := range history.Entries() {
		snapshot.Record(entry)
	}
	return func(context.Context) (tea.Msg, error) {
		if err := snapshot.Save(path, meta); err != nil {
			return exportResultMsg{path: path, err: err}, err
		}
		return exportResultMsg{path: path, count: snapshot.Len()}, nil
	}
}
