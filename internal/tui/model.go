package tui

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/rulebook/internal/corpus"
	"github.com/csheth/rulebook/internal/guide"
	"github.com/csheth/rulebook/internal/session"
	"github.com/csheth/rulebook/internal/transcript"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Session        *session.Orchestrator
	BaseURL        string
	Username       string
	Password       string
	PDFPath        string
	JSONPath       string
	TranscriptPath string
	Logger         *zap.Logger
	// Timeout bounds each backend call; zero waits indefinitely.
	Timeout time.Duration
}

var jobOperations = map[jobKind]session.Operation{
	jobKindLogin:   session.OpAuthenticate,
	jobKindLoad:    session.OpLoadCorpus,
	jobKindAsk:     session.OpAskQuestion,
	jobKindRefresh: session.OpRefreshSessionState,
}

type model struct {
	config Config
	orch   *session.Orchestrator
	log    *zap.Logger
	jobs   *jobBus
	layout pageLayout

	tab      tab
	focus    field
	inputs   [fieldCount]textinput.Model
	question textinput.Model
	spinner  spinner.Model

	answerView viewport.Model
	stateView  viewport.Model

	history  *transcript.Transcript
	summary  corpus.Summary
	pending  map[jobKind]bool
	lastJobs map[jobKind]jobSnapshot

	helpVisible   bool
	infoMessage   string
	errorMessage  string
	viewportDirty bool
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		in := textinput.New()
		in.CharLimit = 512
		in.Width = 60
		inputs[i] = in
	}
	inputs[fieldUsername].Placeholder = usernamePlaceholder
	inputs[fieldUsername].CharLimit = 120
	inputs[fieldUsername].SetValue(config.Username)
	inputs[fieldPassword].Placeholder = passwordPlaceholder
	inputs[fieldPassword].CharLimit = 120
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'
	inputs[fieldPassword].SetValue(config.Password)
	inputs[fieldPDFPath].Placeholder = pdfPlaceholder
	inputs[fieldPDFPath].SetValue(config.PDFPath)
	inputs[fieldJSONPath].Placeholder = jsonPlaceholder
	inputs[fieldJSONPath].SetValue(config.JSONPath)

	questionInput := textinput.New()
	questionInput.Placeholder = questionPlaceholder
	questionInput.CharLimit = 1000
	questionInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	answerView := viewport.New(80, 6)
	stateView := viewport.New(80, 10)
	stateView.MouseWheelEnabled = true

	m := &model{
		config:        config,
		orch:          config.Session,
		log:           log.Named("tui"),
		jobs:          newJobBus(log, config.Timeout),
		layout:        newPageLayout(),
		tab:           tabLoad,
		inputs:        inputs,
		question:      questionInput,
		spinner:       spin,
		answerView:    answerView,
		stateView:     stateView,
		history:       transcript.New(),
		pending:       map[jobKind]bool{},
		lastJobs:      map[jobKind]jobSnapshot{},
		infoMessage:   "Enter your credentials and press ctrl+l to log in.",
		viewportDirty: true,
	}
	m.focusField(m.initialFocus())
	return m
}

func (m *model) initialFocus() field {
	switch {
	case strings.TrimSpace(m.inputs[fieldUsername].Value()) == "":
		return fieldUsername
	case m.inputs[fieldPassword].Value() == "":
		return fieldPassword
	default:
		return fieldPDFPath
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.anyPending() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			if m.pending[jobKindAsk] {
				m.markViewportDirty()
			}
			return m, cmd
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.applyLayout()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.tab == tabAsk {
			var cmd tea.Cmd
			m.stateView, cmd = m.stateView.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobSignalMsg:
		m.lastJobs[msg.Snapshot.Kind] = msg.Snapshot
		return m, nil
	case jobResultEnvelope:
		delete(m.pending, msg.Snapshot.Kind)
		m.lastJobs[msg.Snapshot.Kind] = msg.Snapshot
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case loginResultMsg:
		return m.handleLoginResult(msg)
	case loadResultMsg:
		return m.handleLoadResult(msg)
	case askResultMsg:
		return m.handleAskResult(msg)
	case refreshResultMsg:
		if msg.outcome.Ignored {
			return m, nil
		}
		m.reportOutcome(msg.outcome, "Session state refreshed.")
		m.markViewportDirty()
		return m, nil
	case exportResultMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("export failed: %v", msg.err)
			m.infoMessage = ""
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Exported %d exchange(s) to %s", msg.count, msg.path)
		return m, nil
	}
	return m, nil
}

func (m *model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	if msg.outcome.Ignored {
		return m, nil
	}
	m.reportOutcome(msg.outcome, "")
	if msg.outcome.Signal == session.SignalAuthenticated {
		m.inputs[fieldPassword].SetValue("")
		if m.tab == tabLoad {
			m.focusField(fieldPDFPath)
		}
		m.infoMessage = "Logged in. Choose a PDF and JSON file, then press ctrl+o."
	}
	m.markViewportDirty()
	return m, nil
}

func (m *model) handleLoadResult(msg loadResultMsg) (tea.Model, tea.Cmd) {
	if msg.outcome.Ignored {
		return m, nil
	}
	m.summary = msg.summary
	m.reportOutcome(msg.outcome, "")
	if msg.readErr != nil {
		m.errorMessage = joinMessages(m.errorMessage, msg.readErr.Error())
	}
	if msg.outcome.Signal == session.SignalCorpusReady {
		m.history = transcript.New()
		m.setTab(tabAsk)
	}
	m.markViewportDirty()
	return m, nil
}

func (m *model) handleAskResult(msg askResultMsg) (tea.Model, tea.Cmd) {
	out := msg.outcome
	if out.Ignored {
		return m, nil
	}
	m.reportOutcome(out, "Answer received.")
	if out.Status.Failure != session.FailureValidation {
		entry := transcript.Entry{Question: msg.question, AskedAt: msg.askedAt}
		if out.Status.Phase == session.Succeeded {
			entry.Answer, _ = m.orch.Answer()
			m.question.SetValue("")
		} else {
			entry.Error = out.Status.Message
		}
		m.history.Record(entry)
	}
	m.answerView.GotoTop()
	m.markViewportDirty()
	return m, nil
}

// reportOutcome mirrors an operation's status message into the message line.
func (m *model) reportOutcome(out session.Outcome, fallback string) {
	message := out.Status.Message
	if message == "" {
		message = fallback
	}
	if out.Status.Phase == session.Failed {
		m.errorMessage = message
		m.infoMessage = ""
		m.log.Debug("operation failed", zap.Stringer("op", out.Op), zap.String("message", message))
		return
	}
	m.errorMessage = ""
	m.infoMessage = message
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+t":
		if m.tab == tabLoad {
			m.setTab(tabAsk)
		} else {
			m.setTab(tabLoad)
		}
		return m, nil
	case "f1":
		m.setTab(tabLoad)
		return m, nil
	case "f2":
		m.setTab(tabAsk)
		return m, nil
	case "ctrl+l":
		return m, m.startLogin()
	case "ctrl+o":
		return m, m.startLoad()
	case "ctrl+r":
		return m, m.startRefresh()
	case "ctrl+s":
		return m, m.startExport()
	case "esc":
		if m.helpVisible {
			m.helpVisible = false
			return m, nil
		}
		m.clearFocusedInput()
		return m, nil
	case "?":
		if strings.TrimSpace(m.focusedInput().Value()) == "" {
			m.helpVisible = !m.helpVisible
			return m, nil
		}
	case "pgup":
		m.stateView.HalfViewUp()
		return m, nil
	case "pgdown":
		m.stateView.HalfViewDown()
		return m, nil
	}

	if m.tab == tabLoad {
		return m.handleLoadKey(key)
	}
	return m.handleAskKey(key)
}

func (m *model) handleLoadKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "tab", "down":
		m.focusField((m.focus + 1) % fieldCount)
		return m, nil
	case "shift+tab", "up":
		m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, nil
	case "enter":
		if m.focus == fieldUsername || m.focus == fieldPassword {
			return m, m.startLogin()
		}
		return m, m.startLoad()
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(key)
	return m, cmd
}

func (m *model) handleAskKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "enter":
		return m, m.startAsk()
	case "up":
		m.answerView.LineUp(1)
		return m, nil
	case "down":
		m.answerView.LineDown(1)
		return m, nil
	}
	var cmd tea.Cmd
	m.question, cmd = m.question.Update(key)
	return m, cmd
}

func (m *model) startLogin() tea.Cmd {
	creds := session.Credentials{
		Username: m.inputs[fieldUsername].Value(),
		Password: m.inputs[fieldPassword].Value(),
	}
	m.infoMessage = "Logging in…"
	return m.dispatch(jobKindLogin, loginJob(m.orch, creds))
}

func (m *model) startLoad() tea.Cmd {
	pdfPath := m.inputs[fieldPDFPath].Value()
	jsonPath := m.inputs[fieldJSONPath].Value()
	m.infoMessage = "Uploading documents…"
	return m.dispatch(jobKindLoad, loadCorpusJob(m.orch, pdfPath, jsonPath))
}

func (m *model) startAsk() tea.Cmd {
	question := m.question.Value()
	m.infoMessage = fmt.Sprintf("Asking %q…", previewText(question, questionPreviewLimit))
	return m.dispatch(jobKindAsk, askQuestionJob(m.orch, question))
}

func (m *model) startRefresh() tea.Cmd {
	m.infoMessage = "Refreshing session state…"
	return m.dispatch(jobKindRefresh, refreshStateJob(m.orch))
}

func (m *model) startExport() tea.Cmd {
	if m.history.Len() == 0 {
		m.errorMessage = ""
		m.infoMessage = "Nothing to export yet. Ask a question first."
		return nil
	}
	view := m.orch.View()
	meta := transcript.Export{
		BaseURL:      m.config.BaseURL,
		Subject:      view.Subject,
		Corpus:       m.summary.DocumentName,
		SessionState: view.Snapshot.Document(),
	}
	m.infoMessage = "Exporting transcript…"
	return m.dispatch(jobKindExport, exportTranscriptJob(m.history, m.config.TranscriptPath, meta))
}

// dispatch starts a job unless one of the same kind is still running. The
// orchestrator guards in-flight operations too; checking here keeps the
// disabled trigger from producing a job at all.
func (m *model) dispatch(kind jobKind, runner jobRunner) tea.Cmd {
	if m.busy(kind) {
		m.infoMessage = fmt.Sprintf("%s is still running…", kind)
		return nil
	}
	m.pending[kind] = true
	m.errorMessage = ""
	m.markViewportDirty()
	return tea.Batch(m.jobs.Start(kind, runner), m.spinner.Tick)
}

func (m *model) busy(kind jobKind) bool {
	if m.pending[kind] {
		return true
	}
	if op, ok := jobOperations[kind]; ok && m.orch.InFlight(op) {
		return true
	}
	return false
}

func (m *model) anyPending() bool {
	for _, running := range m.pending {
		if running {
			return true
		}
	}
	return false
}

func (m *model) setTab(t tab) {
	m.tab = t
	if t == tabAsk {
		for i := range m.inputs {
			m.inputs[i].Blur()
		}
		m.question.Focus()
		return
	}
	m.question.Blur()
	m.focusField(m.focus)
}

func (m *model) focusField(f field) {
	m.focus = f
	for i := range m.inputs {
		if field(i) == f {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *model) focusedInput() *textinput.Model {
	if m.tab == tabAsk {
		return &m.question
	}
	return &m.inputs[m.focus]
}

func (m *model) clearFocusedInput() {
	m.focusedInput().SetValue("")
}

func (m *model) guideProgress() guide.Progress {
	view := m.orch.View()
	return guide.Progress{
		Authenticated: view.Authenticated,
		Username:      view.Subject,
		CorpusLoaded:  view.Stage == session.StageCorpusLoaded,
		Document:      m.summary.DocumentName,
		Questions:     m.history.Len(),
	}
}

func (m *model) apiHost() string {
	base := strings.TrimSpace(m.config.BaseURL)
	if base == "" {
		return "unset"
	}
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		return u.Host
	}
	return base
}

func joinMessages(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "; ")
}
