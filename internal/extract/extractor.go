// Package extract provides text extraction from the documents the application reads:
// PDF stories in the archive and brief documents attached to a generation request.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"
)

// BriefExtensions are the brief document formats Extract understands.
var BriefExtensions = []string{".txt", ".md", ".pdf", ".docx", ".odt", ".rtf"}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// Returns an error if the file cannot be read or its text cannot be extracted.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".odt", ".rtf":
		text, err := cat.FromBytes(content)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return strings.TrimSpace(text), nil
	default:
		return extractPlain(content)
	}
}

// PDFLines returns the non-empty text rows of a PDF in content order, page by page.
func (e *Extractor) PDFLines(content []byte) ([]string, error) {
	return pdfLines(content)
}
