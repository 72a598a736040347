package guide

import (
	"fmt"
	"strings"
)

// Step represents one actionable item in the onboarding checklist.
type Step struct {
	Title       string
	Description string
	Done        bool
}

// Progress carries just enough context for personalizing guide steps.
type Progress struct {
	Authenticated bool
	Username      string
	CorpusLoaded  bool
	Document      string
	Questions     int
}

// Build returns the login → load → ask checklist for the current progress.
func Build(p Progress) []Step {
	who := strings.TrimSpace(p.Username)
	login := "Enter the username and password issued for the backend, then press ctrl+l."
	if p.Authenticated && who != "" {
		login = fmt.Sprintf("Signed in as %s. Log in again at any time to start a fresh session.", who)
	}

	load := "Point the PDF and JSON fields at your rulebook and its seed file, then press ctrl+o. Both files are required."
	if doc := strings.TrimSpace(p.Document); p.CorpusLoaded && doc != "" {
		load = fmt.Sprintf("%s is loaded. Loading again replaces the session on the backend.", doc)
	}

	ask := "Switch to Ask Questions (ctrl+t), type a question and press enter. Use ctrl+r to refresh the session state."
	if p.Questions > 0 {
		ask = fmt.Sprintf("%d question(s) asked. Export the transcript with ctrl+s.", p.Questions)
	}

	return []Step{
		{Title: "Step 1 – Log in", Description: login, Done: p.Authenticated},
		{Title: "Step 2 – Load the corpus", Description: load, Done: p.Authenticated && p.CorpusLoaded},
		{Title: "Step 3 – Ask and inspect", Description: ask, Done: p.Authenticated && p.CorpusLoaded && p.Questions > 0},
	}
}

// Next returns the index of the first unfinished step, or -1 when all are done.
func Next(steps []Step) int {
	for i, step := range steps {
		if !step.Done {
			return i
		}
	}
	return -1
}
