package tui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/rulebook/internal/guide"
	"github.com/csheth/rulebook/internal/session"
)

type pageLayout struct {
	windowWidth   int
	windowHeight  int
	viewportWidth int
	answerHeight  int
	stateHeight   int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth: 80,
		answerHeight:  6,
		stateHeight:   10,
	}
}

// Update splits the rows left over after the fixed chrome between the
// response box and the session state box.
func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	const chrome = 18
	usable := height - chrome
	if usable < 8 {
		usable = 8
	}
	l.answerHeight = usable * 2 / 5
	if l.answerHeight < 3 {
		l.answerHeight = 3
	}
	l.stateHeight = usable - l.answerHeight
	if l.stateHeight < 4 {
		l.stateHeight = 4
	}
}

// boxContentWidth is the width inside a bordered, padded box.
func (l pageLayout) boxContentWidth() int {
	const borderAndPadding = 4
	width := l.viewportWidth - borderAndPadding
	if width < 20 {
		width = 20
	}
	return width
}

func (m *model) applyLayout() {
	width := m.layout.boxContentWidth()
	m.answerView.Width = width
	m.answerView.Height = m.layout.answerHeight
	m.stateView.Width = width
	m.stateView.Height = m.layout.stateHeight
	inputWidth := m.layout.viewportWidth - 14
	if inputWidth < 20 {
		inputWidth = 20
	}
	for i := range m.inputs {
		m.inputs[i].Width = inputWidth
	}
	m.question.Width = m.layout.viewportWidth - 4
	m.markViewportDirty()
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

func (m *model) refreshViewportIfDirty() {
	if !m.viewportDirty {
		return
	}
	m.refreshViewports()
	m.viewportDirty = false
}

func (m *model) refreshViewports() {
	view := m.orch.View()
	wrap := m.layout.boxContentWidth()

	answer := view.AnswerText()
	switch {
	case m.pending[jobKindAsk]:
		answer = helperStyle.Render(m.spinner.View() + " Waiting for the backend…")
	case answer == "" && !view.HasAnswer:
		answer = helperStyle.Render(noResponseYet)
	case view.Status(session.OpAskQuestion).Phase == session.Failed &&
		view.Status(session.OpAskQuestion).Failure != session.FailureValidation:
		answer = errorStyle.Render(wordwrap.String(answer, wrap))
	default:
		answer = wordwrap.String(answer, wrap)
	}
	m.answerView.SetContent(answer)

	state := view.SnapshotJSON()
	if state == "" {
		state = helperStyle.Render(wordwrap.String(noSessionStateYet, wrap))
	} else if view.Snapshot.IsError() {
		state = errorStyle.Render(state)
	}
	m.stateView.SetContent(state)
}

func (m *model) writeGuide(cb *contentBuilder) {
	steps := guide.Build(m.guideProgress())
	next := guide.Next(steps)
	wrap := m.layout.boxContentWidth()
	cb.WriteString(sectionHeaderStyle.Render("Getting Started"))
	cb.WriteRune('\n')
	for idx, step := range steps {
		marker := "[ ]"
		title := step.Title
		switch {
		case step.Done:
			marker = successStyle.Render("[x]")
		case idx == next:
			title = focusedLabelStyle.UnsetWidth().Render(title)
		}
		cb.WriteString(marker + " " + title)
		cb.WriteRune('\n')
		cb.WriteString(indentMultiline(helperStyle.Render(wordwrap.String(step.Description, wrap-4)), "    "))
		cb.WriteRune('\n')
	}
}

func (m *model) writeStatuses(cb *contentBuilder) {
	view := m.orch.View()
	cb.WriteString(sectionHeaderStyle.Render("Operations"))
	cb.WriteRune('\n')
	for _, op := range session.Operations {
		st := view.Status(op)
		line := operationLabel(op) + ": " + m.phaseText(st.Phase)
		if st.Message != "" {
			line += " · " + st.Message
		}
		switch st.Phase {
		case session.Failed:
			line = errorStyle.Render(line)
		case session.Succeeded:
			line = successStyle.Render(line)
		default:
			line = helperStyle.Render(line)
		}
		cb.WriteString(line)
		cb.WriteRune('\n')
	}
}

func (m *model) phaseText(p session.Phase) string {
	if p == session.InFlight {
		return m.spinner.View() + " " + p.String()
	}
	return p.String()
}

func operationLabel(op session.Operation) string {
	switch op {
	case session.OpAuthenticate:
		return "Login"
	case session.OpLoadCorpus:
		return "Load data"
	case session.OpAskQuestion:
		return "Ask"
	case session.OpRefreshSessionState:
		return "Session state"
	default:
		return op.String()
	}
}

func phaseGlyph(p session.Phase) string {
	switch p {
	case session.InFlight:
		return "…"
	case session.Succeeded:
		return "✓"
	case session.Failed:
		return "✗"
	default:
		return "·"
	}
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func previewText(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
