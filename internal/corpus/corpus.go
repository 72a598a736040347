package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// File is one user-chosen artifact, read fully into memory.
type File struct {
	Name        string
	Data        []byte
	ContentType string
}

// Payload pairs the primary document with its structured seed. Both parts are
// required; a payload with either part missing is never sent.
type Payload struct {
	Document *File
	Seed     *File
}

// Complete reports whether both parts are present and non-empty.
func (p Payload) Complete() bool {
	return p.Document.present() && p.Seed.present()
}

func (f *File) present() bool {
	return f != nil && len(f.Data) > 0
}

// ReadFile loads a file from disk and sniffs its content type.
func ReadFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return NewFile(filepath.Base(path), data), nil
}

// NewFile wraps in-memory bytes, detecting the content type from the data.
func NewFile(name string, data []byte) *File {
	return &File{
		Name:        name,
		Data:        data,
		ContentType: detectContentType(name, data),
	}
}

func detectContentType(name string, data []byte) string {
	mime := mimetype.Detect(data)
	switch {
	case mime.Is("application/pdf"):
		return "application/pdf"
	case mime.Is("application/json"):
		return "application/json"
	case strings.EqualFold(filepath.Ext(name), ".json"):
		// Small or unusual JSON files sniff as text/plain.
		return "application/json"
	}
	return mime.String()
}

// SeedShape describes the top-level JSON value of a structured seed.
type SeedShape string

const (
	SeedObject  SeedShape = "object"
	SeedArray   SeedShape = "array"
	SeedScalar  SeedShape = "scalar"
	SeedInvalid SeedShape = "invalid"
)

// Summary is a display-only description of a payload.
type Summary struct {
	DocumentName  string
	DocumentBytes int
	Pages         int
	PDFError      string
	SeedName      string
	SeedBytes     int
	SeedShape     SeedShape
	SeedKeys      int
}

// Inspect describes a payload for display. Problems found here are reported
// rather than rejected; the backend stays the authority on what it accepts.
func Inspect(p Payload) Summary {
	var s Summary
	if p.Document.present() {
		s.DocumentName = p.Document.Name
		s.DocumentBytes = len(p.Document.Data)
		pages, err := CountPages(p.Document.Data)
		if err != nil {
			s.PDFError = err.Error()
		}
		s.Pages = pages
	}
	if p.Seed.present() {
		s.SeedName = p.Seed.Name
		s.SeedBytes = len(p.Seed.Data)
		s.SeedShape, s.SeedKeys = seedShape(p.Seed.Data)
	}
	return s
}

// CountPages returns the number of pages in a PDF document.
func CountPages(data []byte) (pages int, err error) {
	defer func() {
		// The pdf reader panics on some malformed cross-reference tables.
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("unreadable pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("unreadable pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func seedShape(data []byte) (SeedShape, int) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return SeedInvalid, 0
	}
	switch v := value.(type) {
	case map[string]any:
		return SeedObject, len(v)
	case []any:
		return SeedArray, len(v)
	default:
		return SeedScalar, 0
	}
}

// Describe renders the summary as a single status line.
func (s Summary) Describe() string {
	var parts []string
	if s.DocumentName != "" {
		doc := fmt.Sprintf("%s (%s", s.DocumentName, humanBytes(s.DocumentBytes))
		if s.PDFError == "" {
			doc += fmt.Sprintf(", %d pages)", s.Pages)
		} else {
			doc += ", unreadable pdf)"
		}
		parts = append(parts, doc)
	}
	if s.SeedName != "" {
		seed := fmt.Sprintf("%s (%s, %s", s.SeedName, humanBytes(s.SeedBytes), s.SeedShape)
		switch s.SeedShape {
		case SeedObject:
			seed += fmt.Sprintf(" with %d keys)", s.SeedKeys)
		case SeedArray:
			seed += fmt.Sprintf(" of %d items)", s.SeedKeys)
		default:
			seed += ")"
		}
		parts = append(parts, seed)
	}
	return strings.Join(parts, " + ")
}

func humanBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
