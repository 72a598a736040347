package tui

type tab int

const (
	tabLoad tab = iota
	tabAsk
)

func (t tab) title() string {
	if t == tabAsk {
		return "Ask Questions"
	}
	return "Load Data"
}

// field indexes the inputs on the Load Data tab.
type field int

const (
	fieldUsername field = iota
	fieldPassword
	fieldPDFPath
	fieldJSONPath
	fieldCount
)

const heroTagline = "Load a rulebook, then ask it anything."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	questionPreviewLimit      = 60
)

const (
	usernamePlaceholder = "username"
	passwordPlaceholder = "password"
	pdfPlaceholder      = "path/to/rulebook.pdf"
	jsonPlaceholder     = "path/to/session.json"
	questionPlaceholder = "Ask about the loaded rulebook…"
	noResponseYet       = "Responses will appear here."
	noSessionStateYet   = "Session state appears after loading data. Press ctrl+r to refresh."
)
