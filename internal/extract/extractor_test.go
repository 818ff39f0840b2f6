package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Plain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.txt")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbfPúblico joven\r\nTono cercano\r\n"), 0o644))

	text, err := NewExtractor().Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "Público joven\nTono cercano", text)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	text, err := NewExtractor().ExtractBytes([]byte("ok\xff"), ".md")
	require.NoError(t, err)
	assert.Equal(t, "ok�", text)
}

func TestExtract_Nonexistent(t *testing.T) {
	_, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func buildDOCX(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_DOCX(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p><w:r><w:t>Campaña de </w:t></w:r><w:r><w:t xml:space="preserve">verano</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`<w:p w:rsidR="00AB"><w:r><w:t>Mostrar la playa</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	data := buildDOCX(t, map[string]string{"word/document.xml": doc})

	text, err := NewExtractor().ExtractBytes(data, ".docx")
	require.NoError(t, err)
	assert.Equal(t, "Campaña de verano\nMostrar la playa", text)
}

func TestExtract_DOCXContentTypes(t *testing.T) {
	ct := `<Types><Override PartName="/word/main.xml" ContentType="` + docxMainContentType + `"/></Types>`
	data := buildDOCX(t, map[string]string{
		docxContentTypes: ct,
		"word/main.xml":  `<w:p><w:r><w:t>Desde main</w:t></w:r></w:p>`,
	})
	text, err := NewExtractor().ExtractBytes(data, ".docx")
	require.NoError(t, err)
	assert.Equal(t, "Desde main", text)

	_, err = NewExtractor().ExtractBytes(buildDOCX(t, map[string]string{"other.xml": ""}), ".docx")
	assert.Error(t, err)
	_, err = NewExtractor().ExtractBytes([]byte("not a zip"), ".docx")
	assert.Error(t, err)
}

func TestPDFLines(t *testing.T) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Cell(0, 10, "Primera linea")
	doc.Ln(12)
	doc.Cell(0, 10, "Segunda linea")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	lines, err := NewExtractor().PDFLines(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Primera linea", "Segunda linea"}, lines)
}

func TestPDFLines_Invalid(t *testing.T) {
	_, err := NewExtractor().PDFLines([]byte("not a pdf"))
	assert.Error(t, err)
}
