package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zaptest"

	"github.com/csheth/rulebook/internal/corpus"
	"github.com/csheth/rulebook/internal/gateway"
	"github.com/csheth/rulebook/internal/session"
)

type fakeGateway struct {
	tokenErr error
	queryErr error
	answer   string
	block    chan struct{}
}

func (f *fakeGateway) Token(ctx context.Context, username, password string) (string, error) {
	if f.block != nil {
		<-f.block
	}
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok-123", nil
}

func (f *fakeGateway) LoadData(ctx context.Context, token string, payload corpus.Payload) (gateway.LoadResult, error) {
	return gateway.LoadResult{
		Message:      "Data loaded successfully. RAG session initialized.",
		SessionState: map[string]any{"docs": 1},
	}, nil
}

func (f *fakeGateway) Query(ctx context.Context, token, question string) (gateway.QueryResult, error) {
	if f.queryErr != nil {
		return gateway.QueryResult{}, f.queryErr
	}
	answer := f.answer
	if answer == "" {
		answer = "Rule 4.2 covers substitutions."
	}
	return gateway.QueryResult{Response: answer, SessionState: map[string]any{"docs": 1, "queries": 1}}, nil
}

func (f *fakeGateway) SessionState(ctx context.Context, token string) (map[string]any, error) {
	return map[string]any{"docs": 1, "queries": 1}, nil
}

func newTestModel(t *testing.T, gw *fakeGateway, cfg Config) *model {
	t.Helper()
	if gw == nil {
		gw = &fakeGateway{}
	}
	cfg.Session = session.New(gw, session.WithLogger(zaptest.NewLogger(t)))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	teaModel, ok := New(cfg).(*model)
	if !ok {
		t.Fatalf("expected *model, got %T", teaModel)
	}
	return teaModel
}

func writeCorpusFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "rules.pdf")
	jsonPath := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4\n%%EOF\n"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if err := os.WriteFile(jsonPath, []byte(`{"rules": []}`), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	return pdfPath, jsonPath
}

// deliver runs a job's runner inline and feeds the wrapped result to the model.
func deliver(t *testing.T, m *model, kind jobKind, runner jobRunner) {
	t.Helper()
	env := m.jobs.run(m.jobs.nextID(kind), kind, time.Now(), runner)
	m.Update(env)
}

func deliverLogin(t *testing.T, m *model) {
	t.Helper()
	deliver(t, m, jobKindLogin, loginJob(m.orch, session.Credentials{Username: "testuser", Password: "testpassword"}))
}

func loginAndLoad(t *testing.T, m *model) {
	t.Helper()
	deliverLogin(t, m)
	pdfPath, jsonPath := writeCorpusFiles(t)
	deliver(t, m, jobKindLoad, loadCorpusJob(m.orch, pdfPath, jsonPath))
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewFocusesFirstEmptyField(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	if m.focus != fieldUsername {
		t.Fatalf("expected username focus, got %v", m.focus)
	}

	m = newTestModel(t, nil, Config{Username: "testuser"})
	if m.focus != fieldPassword {
		t.Fatalf("expected password focus, got %v", m.focus)
	}

	m = newTestModel(t, nil, Config{Username: "testuser", Password: "testpassword"})
	if m.focus != fieldPDFPath {
		t.Fatalf("expected pdf focus, got %v", m.focus)
	}
}

func TestInitialViewShowsUnauthenticatedLoadTab(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	frame := m.View()
	for _, want := range []string{"Not authenticated", "Load Data", "API: localhost:8000", "Step 1"} {
		if !strings.Contains(frame, want) {
			t.Fatalf("view missing %q:\n%s", want, frame)
		}
	}
}

func TestLoginFocusesDocumentField(t *testing.T) {
	m := newTestModel(t, nil, Config{Username: "testuser", Password: "testpassword"})
	m.focusField(fieldPassword)

	deliver(t, m, jobKindLogin, loginJob(m.orch, session.Credentials{Username: "testuser", Password: "testpassword"}))

	if m.focus != fieldPDFPath {
		t.Fatalf("expected pdf focus after login, got %v", m.focus)
	}
	if m.inputs[fieldPassword].Value() != "" {
		t.Fatal("password should be cleared after a successful login")
	}
	if m.errorMessage != "" {
		t.Fatalf("unexpected error message %q", m.errorMessage)
	}
	if !strings.Contains(m.View(), "Authenticated") {
		t.Fatal("view should show the authenticated pill")
	}
}

func TestFailedLoginShowsDetail(t *testing.T) {
	gw := &fakeGateway{tokenErr: &gateway.Error{Kind: gateway.KindServer, Op: "token", Status: 401, Detail: "Incorrect credentials"}}
	m := newTestModel(t, gw, Config{})

	deliver(t, m, jobKindLogin, loginJob(m.orch, session.Credentials{Username: "testuser", Password: "wrong"}))

	if m.errorMessage != "Incorrect credentials" {
		t.Fatalf("unexpected error message %q", m.errorMessage)
	}
	if m.focus != fieldUsername {
		t.Fatalf("focus should stay put, got %v", m.focus)
	}
	if !strings.Contains(m.View(), "Not authenticated") {
		t.Fatal("failed login must not show as authenticated")
	}
}

func TestCorpusReadySwitchesToAskTab(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	loginAndLoad(t, m)

	if m.tab != tabAsk {
		t.Fatalf("expected ask tab, got %v", m.tab)
	}
	if !m.question.Focused() {
		t.Fatal("question input should be focused")
	}
	if m.summary.DocumentName != "rules.pdf" {
		t.Fatalf("summary not stored: %+v", m.summary)
	}
	if !strings.Contains(m.View(), `"docs": 1`) {
		t.Fatal("session state should render after loading")
	}
}

func TestLoadWithoutFilesIsValidationOnly(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	deliverLogin(t, m)

	deliver(t, m, jobKindLoad, loadCorpusJob(m.orch, "", ""))

	if m.tab != tabLoad {
		t.Fatal("validation failure should keep the load tab")
	}
	if !strings.Contains(m.errorMessage, "both files required") {
		t.Fatalf("unexpected error message %q", m.errorMessage)
	}
}

func TestAskRecordsTranscriptAndClearsInput(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	loginAndLoad(t, m)
	m.question.SetValue("What is rule 4.2?")

	deliver(t, m, jobKindAsk, askQuestionJob(m.orch, m.question.Value()))

	if m.history.Len() != 1 {
		t.Fatalf("expected one transcript entry, got %d", m.history.Len())
	}
	entry, _ := m.history.Last()
	if entry.Answer != "Rule 4.2 covers substitutions." {
		t.Fatalf("unexpected recorded answer %q", entry.Answer)
	}
	if m.question.Value() != "" {
		t.Fatal("question input should clear after an answer")
	}
	if !strings.Contains(m.View(), "Rule 4.2 covers substitutions.") {
		t.Fatal("answer should be rendered")
	}
}

func TestFailedAskKeepsQuestionAndRecordsError(t *testing.T) {
	gw := &fakeGateway{queryErr: &gateway.Error{Kind: gateway.KindTransport, Op: "query_ai", Err: errors.New("connection refused")}}
	m := newTestModel(t, gw, Config{})
	loginAndLoad(t, m)
	m.question.SetValue("What is rule 4.2?")

	deliver(t, m, jobKindAsk, askQuestionJob(m.orch, m.question.Value()))

	entry, ok := m.history.Last()
	if !ok || !entry.Failed() {
		t.Fatalf("expected a failed entry, got %+v", entry)
	}
	if m.question.Value() == "" {
		t.Fatal("question should be kept for a retry")
	}
	if !strings.Contains(m.errorMessage, "transport error") {
		t.Fatalf("unexpected error message %q", m.errorMessage)
	}
}

func TestBlankQuestionIsNotRecorded(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	loginAndLoad(t, m)

	deliver(t, m, jobKindAsk, askQuestionJob(m.orch, "   "))

	if m.history.Len() != 0 {
		t.Fatalf("blank question should not be recorded, got %d entries", m.history.Len())
	}
	if !strings.Contains(m.errorMessage, "please enter a question") {
		t.Fatalf("unexpected error message %q", m.errorMessage)
	}
}

func TestDispatchIgnoresRepeatedTrigger(t *testing.T) {
	m := newTestModel(t, nil, Config{Username: "testuser", Password: "testpassword"})

	if cmd := m.startLogin(); cmd == nil {
		t.Fatal("first login should dispatch a job")
	}
	if cmd := m.startLogin(); cmd != nil {
		t.Fatal("second login should be dropped while the first is pending")
	}
	if !strings.Contains(m.infoMessage, "still running") {
		t.Fatalf("unexpected info message %q", m.infoMessage)
	}

	m.Update(jobResultEnvelope{Snapshot: jobSnapshot{Kind: jobKindLogin, Status: jobStatusFailed}})
	if m.pending[jobKindLogin] {
		t.Fatal("result envelope should clear the pending flag")
	}
}

func TestDispatchRespectsOrchestratorInFlight(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	m := newTestModel(t, gw, Config{})

	done := make(chan session.Outcome)
	go func() {
		done <- m.orch.Authenticate(context.Background(), session.Credentials{Username: "testuser", Password: "testpassword"})
	}()
	for !m.orch.InFlight(session.OpAuthenticate) {
		time.Sleep(time.Millisecond)
	}

	if cmd := m.startLogin(); cmd != nil {
		t.Fatal("login should be disabled while the orchestrator is busy")
	}
	close(gw.block)
	<-done
}

func TestHelpToggleOnlyWithEmptyInput(t *testing.T) {
	m := newTestModel(t, nil, Config{})

	m.Update(keyRunes("?"))
	if !m.helpVisible {
		t.Fatal("? should open help when the input is empty")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.helpVisible {
		t.Fatal("esc should close help")
	}

	m.inputs[fieldUsername].SetValue("who")
	m.inputs[fieldUsername].CursorEnd()
	m.Update(keyRunes("?"))
	if m.helpVisible {
		t.Fatal("? should be typed when the input has text")
	}
	if got := m.inputs[fieldUsername].Value(); got != "who?" {
		t.Fatalf("expected ? to be typed, got %q", got)
	}
}

func TestEscClearsFocusedInput(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	m.inputs[fieldUsername].SetValue("someone")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	if m.inputs[fieldUsername].Value() != "" {
		t.Fatal("esc should clear the focused input")
	}
}

func TestTabCyclesFocus(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != fieldPassword {
		t.Fatalf("expected password focus, got %v", m.focus)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.focus != fieldJSONPath {
		t.Fatalf("shift+tab should wrap to the last field, got %v", m.focus)
	}
}

func TestCtrlTTogglesTabs(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.tab != tabAsk {
		t.Fatal("ctrl+t should switch to the ask tab")
	}
	if !strings.Contains(m.View(), noResponseYet) {
		t.Fatal("empty response placeholder missing")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.tab != tabLoad {
		t.Fatal("ctrl+t should switch back")
	}
}

func TestExportRequiresHistory(t *testing.T) {
	m := newTestModel(t, nil, Config{TranscriptPath: filepath.Join(t.TempDir(), "out.json")})
	if cmd := m.startExport(); cmd != nil {
		t.Fatal("export without questions should not dispatch")
	}
	if !strings.Contains(m.infoMessage, "Nothing to export") {
		t.Fatalf("unexpected info message %q", m.infoMessage)
	}
}
