package archive

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"github.com/hyperjump/historias/internal/models"
	"github.com/hyperjump/historias/pkg/utils"
)

// PDF heuristics. Rows longer than pdfBodyMinRunes that are not labels are
// taken as body text.
const (
	pdfBodyMinRunes  = 50
	pdfMaxBody       = 5
	pdfFullTextRunes = 1000
	unextractedText  = "[Contenido PDF no extraído]"
)

// PDFWriter lays out title, metadata, hook, body and call to action on A4
// pages. Full text and hashtags are not written.
type PDFWriter struct {
	// Now supplies the date of records without created_at. Defaults to time.Now.
	Now func() time.Time
}

func (PDFWriter) Format() models.FileType { return models.FileTypePDF }

func (p PDFWriter) Encode(w io.Writer, rec *models.Record) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	ct := &rec.Content
	doc.SetTitle(orPlaceholder(ct.Title, models.UntitledStory), true)
	doc.SetCreator("historias", false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 24)
	doc.SetTextColor(0, 122, 204)
	doc.MultiCell(0, 11, tr(orPlaceholder(ct.Title, models.UntitledStory)), "", "L", false)
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 11)
	doc.SetTextColor(51, 51, 51)
	meta := fmt.Sprintf("%s %s | %s %s", labelTone, orPlaceholder(rec.Tone, placeholderTone), labelDate, metaDate(rec, clock(p.Now)))
	doc.MultiCell(0, 6, tr(meta), "", "L", false)
	doc.Ln(6)

	heading := func(s string) {
		doc.SetFont("Helvetica", "B", 16)
		doc.SetTextColor(0, 122, 204)
		doc.MultiCell(0, 8, tr(s), "", "L", false)
		doc.Ln(2)
		doc.SetFont("Helvetica", "", 11)
		doc.SetTextColor(51, 51, 51)
	}
	text := func(s string) {
		if s != "" {
			doc.MultiCell(0, 6, tr(s), "", "L", false)
		}
	}

	heading(headingHook)
	text(ct.Hook)
	doc.Ln(6)
	heading(headingBody)
	for _, para := range ct.Body {
		text(para)
		doc.Ln(4)
	}
	doc.Ln(4)
	heading(headingCTA)
	text(ct.CallToAction)

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("write PDF: %w", err)
	}
	return nil
}

// LineExtractor returns the text rows of a PDF document, top to bottom.
type LineExtractor interface {
	PDFLines(content []byte) ([]string, error)
}

// PDFParser rebuilds a record from the text rows of a PDF. The result is a
// rough approximation: long wrapped paragraphs come back as several rows.
type PDFParser struct {
	Lines LineExtractor
}

func (p PDFParser) Parse(name string, data []byte) (*models.Record, error) {
	lines, err := p.Lines.PDFLines(data)
	if err != nil {
		return nil, fmt.Errorf("read PDF %s: %w", name, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("read PDF %s: no text", name)
	}
	return pdfRecord(lines), nil
}

func pdfRecord(lines []string) *models.Record {
	rec := &models.Record{Platform: models.PlatformPDF}
	rec.Content.Title = fromPlaceholder(lines[0], models.UntitledStory)

	// valueAfter returns the row following a label unless it is a label itself.
	valueAfter := func(i int) (string, bool) {
		if i+1 < len(lines) && !isPDFLabel(lines[i+1]) {
			return lines[i+1], true
		}
		return "", false
	}
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, labelTone):
			if m := metaTone.FindStringSubmatch(line); m != nil && rec.Tone == "" {
				rec.Tone = fromPlaceholder(m[1], placeholderTone)
			}
			if m := metaDateRe.FindStringSubmatch(line); m != nil && rec.SourceDate == "" {
				rec.SourceDate = m[1]
			}
		case sameHeading(line, headingHook):
			if v, ok := valueAfter(i); ok && rec.Content.Hook == "" {
				rec.Content.Hook = v
				i++
			}
		case sameHeading(line, headingCTA):
			if v, ok := valueAfter(i); ok && rec.Content.CallToAction == "" {
				rec.Content.CallToAction = v
				i++
			}
		case isPDFLabel(line):
		case utf8.RuneCountInString(line) > pdfBodyMinRunes && len(rec.Content.Body) < pdfMaxBody:
			rec.Content.Body = append(rec.Content.Body, line)
		}
	}
	rec.Content.FullText = utils.Truncate(strings.Join(lines, "\n"), pdfFullTextRunes)
	return rec
}

func isPDFLabel(line string) bool {
	return strings.HasPrefix(line, labelTone) ||
		sameHeading(line, headingHook) ||
		sameHeading(line, headingBody) ||
		sameHeading(line, headingCTA)
}

func sameHeading(line, heading string) bool {
	return canonicalHeading(line) == heading
}

// PDFStubParser stands in for PDFParser when PDF text extraction is disabled.
// It never fails: the record only carries the file name.
type PDFStubParser struct{}

func (PDFStubParser) Parse(name string, _ []byte) (*models.Record, error) {
	rec := &models.Record{Platform: models.PlatformPDF, Unextracted: true}
	rec.Content.Title = strings.TrimSuffix(name, ".pdf")
	rec.Content.FullText = unextractedText
	return rec, nil
}
