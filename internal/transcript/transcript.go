// Package transcript keeps the question and answer history of one client
// session and exports it on request.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one question with its answer or failure.
type Entry struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer,omitempty"`
	Error      string    `json:"error,omitempty"`
	AskedAt    time.Time `json:"askedAt"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// Failed reports whether the exchange ended without an answer.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Export is the document written by Save.
type Export struct {
	BaseURL      string         `json:"baseUrl,omitempty"`
	Subject      string         `json:"subject,omitempty"`
	Corpus       string         `json:"corpus,omitempty"`
	ExportedAt   time.Time      `json:"exportedAt"`
	Entries      []Entry        `json:"entries"`
	SessionState map[string]any `json:"sessionState,omitempty"`
}

// Transcript is an append-only, in-memory history. It is owned by the
// presentation loop and is not safe for concurrent use.
type Transcript struct {
	entries []Entry
	now     func() time.Time
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{now: time.Now}
}

// Record appends an exchange. Blank questions are dropped.
func (t *Transcript) Record(entry Entry) {
	entry.Question = strings.TrimSpace(entry.Question)
	if entry.Question == "" {
		return
	}
	if entry.AnsweredAt.IsZero() {
		entry.AnsweredAt = t.now()
	}
	if entry.AskedAt.IsZero() {
		entry.AskedAt = entry.AnsweredAt
	}
	t.entries = append(t.entries, entry)
}

// Entries returns a copy of the history in recording order.
func (t *Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of recorded exchanges.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Last returns the most recent exchange.
func (t *Transcript) Last() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Save writes the transcript wrapped in meta to path as indented JSON,
// creating parent directories as needed. An existing file is replaced.
func (t *Transcript) Save(path string, meta Export) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("transcript path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	meta.Entries = t.Entries()
	if meta.Entries == nil {
		meta.Entries = []Entry{}
	}
	if meta.ExportedAt.IsZero() {
		meta.ExportedAt = t.now()
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a transcript previously written by Save.
func Load(path string) (Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Export{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Export{}, nil
	}
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return Export{}, fmt.Errorf("decode transcript: %w", err)
	}
	return export, nil
}
