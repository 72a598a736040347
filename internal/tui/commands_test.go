package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/csheth/rulebook/internal/transcript"
)

func TestExportTranscriptJobWritesSnapshot(t *testing.T) {
	history := transcript.New()
	history.Record(transcript.Entry{Question: "What is rule 4.2?", Answer: "Rule 4.2 covers substitutions.", AskedAt: time.Now()})
	path := filepath.Join(t.TempDir(), "nested", "transcript.json")

	runner := exportTranscriptJob(history, path, transcript.Export{BaseURL: "http://localhost:8000", Corpus: "rules.pdf"})
	history.Record(transcript.Entry{Question: "asked after export started"})

	msg, err := runner(context.Background())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	result, ok := msg.(exportResultMsg)
	if !ok {
		t.Fatalf("expected exportResultMsg, got %T", msg)
	}
	if result.count != 1 {
		t.Fatalf("export should use the history at dispatch time, got %d entries", result.count)
	}

	saved, err := transcript.Load(path)
	if err != nil {
		t.Fatalf("load transcript: %v", err)
	}
	if saved.Corpus != "rules.pdf" || len(saved.Entries) != 1 {
		t.Fatalf("unexpected export %+v", saved)
	}
}

func TestExportTranscriptJobReportsError(t *testing.T) {
	history := transcript.New()
	history.Record(transcript.Entry{Question: "q"})

	msg, err := exportTranscriptJob(history, "  ", transcript.Export{})(context.Background())
	if err == nil {
		t.Fatal("blank path should fail")
	}
	if result := msg.(exportResultMsg); result.err == nil {
		t.Fatal("error should be carried in the message")
	}
}

func TestLoadCorpusJobReportsReadError(t *testing.T) {
	m := newTestModel(t, nil, Config{})
	deliverLogin(t, m)

	msg, err := loadCorpusJob(m.orch, filepath.Join(t.TempDir(), "absent.pdf"), "")(context.Background())
	if err == nil {
		t.Fatal("missing files should fail validation")
	}
	result := msg.(loadResultMsg)
	if result.readErr == nil {
		t.Fatal("read error should be surfaced")
	}
}
