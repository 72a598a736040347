package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordSkipsBlankQuestions(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Record(Entry{Question: "   "})
	tr.Record(Entry{Question: " What is rule 4.2? ", Answer: "Rule 4.2 states…"})

	require.Equal(t, 1, tr.Len())
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, "What is rule 4.2?", last.Question)
	assert.False(t, last.Failed())
	assert.False(t, last.AnsweredAt.IsZero())
	assert.Equal(t, last.AnsweredAt, last.AskedAt)
}

func TestEntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Record(Entry{Question: "q", Error: "no answer received"})
	entries := tr.Entries()
	entries[0].Question = "mutated"

	last, _ := tr.Last()
	assert.Equal(t, "q", last.Question)
	assert.True(t, last.Failed())
}

func TestSaveWritesExport(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	tr := New()
	tr.now = fixedClock(now)
	tr.Record(Entry{Question: "What is rule 4.2?", Answer: "Rule 4.2 states…"})
	tr.Record(Entry{Question: "And 4.3?", Error: "RAG session not initialized. Please call /load_data first."})

	path := filepath.Join(t.TempDir(), "nested", "transcript.json")
	err := tr.Save(path, Export{
		BaseURL:      "http://localhost:8000",
		Subject:      "testuser",
		SessionState: map[string]any{"docs": 1},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \""), "expected indented JSON")
	assert.NotContains(t, string(raw), "password")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "testuser", got.Subject)
	assert.True(t, now.Equal(got.ExportedAt))
	require.Len(t, got.Entries, 2)
	assert.True(t, got.Entries[1].Failed())
	assert.EqualValues(t, 1, got.SessionState["docs"])
}

func TestSaveEmptyTranscript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, New().Save(path, Export{}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"entries": []`)
}

func TestSaveRejectsBlankPath(t *testing.T) {
	t.Parallel()

	assert.Error(t, New().Save("  ", Export{}))
}
