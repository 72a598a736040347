package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/rulebook/internal/session"
)

func (m *model) View() string {
	m.refreshViewportIfDirty()
	var body string
	if m.tab == tabAsk {
		body = m.viewAsk()
	} else {
		body = m.viewLoad()
	}
	parts := []string{m.heroView(), m.tabsView(), body, m.messageView()}
	if m.helpVisible {
		parts = append(parts, m.keyLegendView(), m.helpView())
	}
	parts = append(parts, m.sessionMeterView())
	return joinNonEmpty(parts)
}

func (m *model) viewLoad() string {
	cb := &contentBuilder{}
	cb.WriteString(sectionHeaderStyle.Render("Credentials"))
	cb.WriteRune('\n')
	cb.WriteString(m.inputRow("Username", fieldUsername))
	cb.WriteRune('\n')
	cb.WriteString(m.inputRow("Password", fieldPassword))
	cb.WriteRune('\n')
	cb.WriteRune('\n')
	cb.WriteString(sectionHeaderStyle.Render("Documents"))
	cb.WriteRune('\n')
	cb.WriteString(m.inputRow("PDF", fieldPDFPath))
	cb.WriteRune('\n')
	cb.WriteString(m.inputRow("JSON", fieldJSONPath))
	cb.WriteRune('\n')
	if line := m.summary.Describe(); line != "" {
		cb.WriteString(helperStyle.Render("Last upload: " + line))
		cb.WriteRune('\n')
	}
	cb.WriteRune('\n')
	m.writeGuide(cb)
	cb.WriteRune('\n')
	m.writeStatuses(cb)
	return strings.TrimRight(cb.String(), "\n")
}

func (m *model) inputRow(label string, f field) string {
	style := labelStyle
	if m.focus == f {
		style = focusedLabelStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, style.Render(label), m.inputs[f].View())
}

func (m *model) viewAsk() string {
	view := m.orch.View()
	stateTitle := "Session State"
	if view.Stale {
		stateTitle += helperStyle.Render("  (from before the last login; ctrl+r to refresh)")
	}
	return joinNonEmpty([]string{
		joinLines(sectionHeaderStyle.Render("Question"), m.question.View()),
		joinLines(sectionHeaderStyle.Render("Response"), responseBoxStyle.Render(m.answerView.View())),
		joinLines(sectionHeaderStyle.Render(stateTitle), stateBoxStyle.Render(m.stateView.View())),
	})
}

func (m *model) heroView() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		renderLogo(),
		taglineStyle.Render(heroTagline),
		m.pillsView(),
	)
}

func (m *model) pillsView() string {
	view := m.orch.View()
	var auth string
	switch {
	case !view.Authenticated:
		auth = pillOffStyle.Render("Not authenticated")
	case view.TokenExpired:
		auth = pillOffStyle.Render("Token expired")
	case view.Subject != "":
		auth = pillOnStyle.Render("Authenticated as " + view.Subject)
	default:
		auth = pillOnStyle.Render("Authenticated")
	}
	pills := []string{auth, " ", pillInfoStyle.Render("API: " + m.apiHost())}
	if view.Authenticated && !view.ExpiresAt.IsZero() && !view.TokenExpired {
		pills = append(pills, " ", pillInfoStyle.Render("Expires "+view.ExpiresAt.Local().Format("15:04")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, pills...)
}

func (m *model) tabsView() string {
	var cells []string
	for _, t := range []tab{tabLoad, tabAsk} {
		label := fmt.Sprintf("F%d %s", int(t)+1, t.title())
		if t == m.tab {
			cells = append(cells, activeTabStyle.Render(label))
		} else {
			cells = append(cells, inactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) messageView() string {
	var lines []string
	if m.errorMessage != "" {
		lines = append(lines, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		message := m.infoMessage
		if m.anyPending() {
			message = fmt.Sprintf("%s %s", m.spinner.View(), message)
		}
		lines = append(lines, helperStyle.Render(message))
	}
	return strings.Join(lines, "\n")
}

func (m *model) sessionMeterView() string {
	view := m.orch.View()
	stats := []string{fmt.Sprintf("Stage %s", view.Stage)}
	for _, op := range session.Operations {
		stats = append(stats, fmt.Sprintf("%s %s", operationLabel(op), phaseGlyph(view.Status(op).Phase)))
	}
	stats = append(stats, fmt.Sprintf("Q&A %d", m.history.Len()))
	stats = append(stats, m.jobStatusBadges()...)
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

// jobStatusBadges reports the most recent run of each job kind.
func (m *model) jobStatusBadges() []string {
	var badges []string
	for _, kind := range jobKindOrder {
		snap, ok := m.lastJobs[kind]
		if !ok {
			continue
		}
		switch snap.Status {
		case jobStatusRunning:
			badges = append(badges, fmt.Sprintf("%s running", kind))
		default:
			badges = append(badges, fmt.Sprintf("%s %s", kind, snap.Duration.Round(time.Millisecond)))
		}
	}
	return badges
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func joinLines(parts ...string) string {
	return strings.Join(parts, "\n")
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyLegendView() string {
	hints := []keyHint{
		{"Ctrl+L", "Log in"},
		{"Ctrl+O", "Load data"},
		{"Enter", "Submit"},
		{"Ctrl+R", "Refresh state"},
		{"Ctrl+S", "Export transcript"},
		{"Ctrl+T", "Switch tab"},
		{"Tab", "Next field"},
		{"PgUp/PgDn", "Scroll state"},
		{"Esc", "Clear input"},
		{"?", "Toggle cheatsheet"},
	}
	rows := []string{sectionHeaderStyle.Render("Key Cheatsheet")}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := min(i+columns, len(hints))
		var cells []string
		for _, hint := range hints[i:end] {
			key := keyStyle.Render(hint.Key)
			desc := keyDescStyle.Render(" " + hint.Description + "  ")
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) helpView() string {
	lines := []string{
		sectionHeaderStyle.Render("How it works"),
		helperStyle.Render("• log in first; loading data and asking questions need a valid token."),
		helperStyle.Render("• both the PDF and the JSON seed are required. Loading again replaces the backend session."),
		helperStyle.Render("• enter submits the focused form: credentials log in, file paths upload, the question asks."),
		helperStyle.Render("• session state refreshes after every load and answer; ctrl+r fetches it on demand."),
		helperStyle.Render(fmt.Sprintf("• ctrl+s writes the question history to %s.", m.transcriptPathLabel())),
	}
	return legendBoxStyle.Render(strings.Join(lines, "\n"))
}

func (m *model) transcriptPathLabel() string {
	if strings.TrimSpace(m.config.TranscriptPath) == "" {
		return "the configured transcript path"
	}
	return m.config.TranscriptPath
}
