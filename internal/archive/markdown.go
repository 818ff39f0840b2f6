package archive

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/historias/internal/models"
	"github.com/hyperjump/historias/pkg/utils"
)

// Section headings shared by the Markdown, HTML and PDF layouts.
const (
	headingHook     = "Gancho"
	headingBody     = "Contenido"
	headingCTA      = "Llamada a la Acción"
	headingFullText = "Texto Completo"
	labelTone       = "Tono:"
	labelDate       = "Fecha:"
)

var (
	mdTitle   = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*$`)
	mdTone    = regexp.MustCompile(`(?m)^\**Tono:\**[ \t]*(.*?)[ \t]*$`)
	mdDate    = regexp.MustCompile(`(?m)^\**Fecha:\**[ \t]*(.*?)[ \t]*$`)
	mdHeading = regexp.MustCompile(`^(#{1,6})[ \t]+(.+?)[ \t]*$`)
	mdDivider = regexp.MustCompile(`^(-{3,}|\*{3,}|_{3,})[ \t]*$`)
)

// MarkdownCodec writes and reads the fixed Markdown skeleton. Field values are
// written verbatim, so a value that contains a heading or divider line will not
// parse back into the same field.
type MarkdownCodec struct {
	// Now supplies the date of records without created_at. Defaults to time.Now.
	Now func() time.Time
}

func (MarkdownCodec) Format() models.FileType { return models.FileTypeMarkdown }

func (c MarkdownCodec) Encode(w io.Writer, rec *models.Record) error {
	bw := bufio.NewWriter(w)
	ct := &rec.Content
	fmt.Fprintf(bw, "# %s\n\n", orPlaceholder(ct.Title, models.UntitledStory))
	fmt.Fprintf(bw, "**%s** %s\n", labelTone, orPlaceholder(rec.Tone, placeholderTone))
	fmt.Fprintf(bw, "**%s** %s\n\n", labelDate, metaDate(rec, clock(c.Now)))
	fmt.Fprintf(bw, "---\n\n## %s\n%s\n\n## %s\n", headingHook, ct.Hook, headingBody)
	for _, p := range ct.Body {
		fmt.Fprintf(bw, "\n%s\n", p)
	}
	fmt.Fprintf(bw, "\n## %s\n%s\n\n---\n\n### %s\n%s\n", headingCTA, ct.CallToAction, headingFullText, ct.FullText)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}

// Parse reconstructs a record from the skeleton. Sections are located by
// heading; the first occurrence of a heading wins and missing sections leave
// their fields empty.
func (MarkdownCodec) Parse(name string, data []byte) (*models.Record, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	rec := &models.Record{Platform: models.PlatformMarkdown}

	if m := mdTitle.FindStringSubmatch(text); m != nil {
		rec.Content.Title = fromPlaceholder(m[1], models.UntitledStory)
	}
	if m := mdTone.FindStringSubmatch(text); m != nil {
		rec.Tone = fromPlaceholder(m[1], placeholderTone)
	}
	if m := mdDate.FindStringSubmatch(text); m != nil {
		rec.SourceDate = m[1]
	}

	sections, fullText, hasFullText := markdownSections(text)
	rec.Content.Hook = sections[headingHook]
	rec.Content.CallToAction = sections[headingCTA]
	rec.Content.Body = utils.SplitParagraphs(sections[headingBody])
	if hasFullText {
		rec.Content.FullText = fullText
	} else {
		rec.Content.FullText = strings.TrimSpace(text)
	}
	return rec, nil
}

// markdownSections returns the trimmed text under each heading, up to the next
// heading or divider, keyed by canonical heading name. The full text section
// runs to the end of the document.
func markdownSections(text string) (map[string]string, string, bool) {
	lines := strings.Split(text, "\n")
	sections := make(map[string]string)
	current := ""
	var buf []string
	flush := func() {
		if current != "" {
			if _, seen := sections[current]; !seen {
				sections[current] = strings.TrimSpace(strings.Join(buf, "\n"))
			}
		}
		current, buf = "", nil
	}
	for i, line := range lines {
		if m := mdHeading.FindStringSubmatch(line); m != nil {
			flush()
			name := canonicalHeading(m[2])
			if name == headingFullText {
				return sections, strings.TrimSpace(strings.Join(lines[i+1:], "\n")), true
			}
			if len(m[1]) > 1 {
				current = name
			}
			continue
		}
		if mdDivider.MatchString(line) {
			flush()
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return sections, "", false
}

// canonicalHeading folds case and the accent of "Acción" so hand-edited files still match.
func canonicalHeading(h string) string {
	h = strings.TrimSpace(strings.TrimRight(h, ":"))
	for _, known := range []string{headingHook, headingBody, headingCTA, headingFullText} {
		if strings.EqualFold(h, known) || strings.EqualFold(h, strings.ReplaceAll(known, "ó", "o")) {
			return known
		}
	}
	return h
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
