package corpus

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a single-page document with a valid cross-reference table.
func minimalPDF(t *testing.T) []byte {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPayloadComplete(t *testing.T) {
	t.Parallel()

	doc := NewFile("rules.pdf", []byte("%PDF-1.4"))
	seed := NewFile("seed.json", []byte(`{"docs":1}`))

	tests := []struct {
		name    string
		payload Payload
		want    bool
	}{
		{"both", Payload{Document: doc, Seed: seed}, true},
		{"missing document", Payload{Seed: seed}, false},
		{"missing seed", Payload{Document: doc}, false},
		{"empty seed bytes", Payload{Document: doc, Seed: &File{Name: "seed.json"}}, false},
		{"nothing", Payload{}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.payload.Complete())
		})
	}
}

func TestReadFileDetectsContentType(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "rules.pdf")
	jsonPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(pdfPath, minimalPDF(t), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"docs": 1}`), 0o644))

	doc, err := ReadFile(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "rules.pdf", doc.Name)
	assert.Equal(t, "application/pdf", doc.ContentType)

	seed, err := ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "application/json", seed.ContentType)
}

func TestReadFileBlankPathIsMissingPart(t *testing.T) {
	t.Parallel()
	file, err := ReadFile("   ")
	require.NoError(t, err)
	assert.Nil(t, file)
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCountPages(t *testing.T) {
	t.Parallel()
	pages, err := CountPages(minimalPDF(t))
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	_, err = CountPages([]byte("definitely not a pdf, but long enough to be read from the end of the buffer without a short read"))
	assert.Error(t, err)
}

func TestInspectDescribesSeedShape(t *testing.T) {
	t.Parallel()

	summary := Inspect(Payload{
		Document: NewFile("rules.pdf", minimalPDF(t)),
		Seed:     NewFile("seed.json", []byte(`[{"id":1},{"id":2}]`)),
	})
	assert.Equal(t, 1, summary.Pages)
	assert.Empty(t, summary.PDFError)
	assert.Equal(t, SeedArray, summary.SeedShape)
	assert.Equal(t, 2, summary.SeedKeys)

	line := summary.Describe()
	assert.True(t, strings.Contains(line, "rules.pdf"), line)
	assert.True(t, strings.Contains(line, "1 pages"), line)
	assert.True(t, strings.Contains(line, "array of 2 items"), line)

	broken := Inspect(Payload{Seed: NewFile("seed.json", []byte(`{"docs":`))})
	assert.Equal(t, SeedInvalid, broken.SeedShape)
}

func TestExtractPagesRejectsGarbage(t *testing.T) {
	t.Parallel()

	pages, err := ExtractPages([]byte("definitely not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable pdf")
	assert.Empty(t, pages)
}
