package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultDocument = "word/document.xml"
	docxContentTypes    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// docxParagraph matches one <w:p ...>...</w:p> element, attributes included.
	docxParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	// docxText matches <w:t> runs, with or without xml:space and other attributes.
	docxText = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	// docxOverride matches Override elements in [Content_Types].xml.
	docxOverride = regexp.MustCompile(`<Override\s[^>]*>`)
	docxPartName = regexp.MustCompile(`PartName="([^"]+)"`)
)

// extractDOCX returns the text of a .docx, one line per non-empty paragraph,
// so a brief keeps its paragraph structure when it is passed to the generator.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	docPath := docxDefaultDocument
	if ct, ok := files[docxContentTypes]; ok {
		if data, err := readZipFile(ct); err == nil {
			if p := mainDocumentPart(string(data)); p != "" {
				docPath = p
			}
		}
	}
	f, ok := files[docPath]
	if !ok {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	xml, err := readZipFile(f)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	var paragraphs []string
	for _, p := range docxParagraph.FindAllString(string(xml), -1) {
		var b strings.Builder
		for _, m := range docxText.FindAllStringSubmatch(p, -1) {
			b.WriteString(m[1])
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

// mainDocumentPart returns the main document part named in [Content_Types].xml
// without its leading slash, or "" when none is declared.
func mainDocumentPart(contentTypes string) string {
	for _, o := range docxOverride.FindAllString(contentTypes, -1) {
		if !strings.Contains(o, `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := docxPartName.FindStringSubmatch(o); m != nil {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}
