package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hyperjump/historias/internal/models"
)

// Class names shared by the HTML writer and both HTML parsers.
const (
	classTitle    = "title"
	classMeta     = "meta"
	classHook     = "hook"
	classBody     = "body-paragraph"
	classCTA      = "cta"
	classFullText = "full-text"
)

const htmlStyle = `        body { font-family: 'Arial', sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; line-height: 1.6; color: #333; }
        .header { border-bottom: 2px solid #007acc; padding-bottom: 20px; margin-bottom: 30px; }
        .title { color: #007acc; font-size: 2.5em; margin-bottom: 10px; }
        .meta { color: #666; font-style: italic; }
        .section { margin: 30px 0; }
        .section-title { color: #007acc; font-size: 1.3em; border-left: 4px solid #007acc; padding-left: 15px; margin-bottom: 15px; }
        .hook { background: #f0f8ff; padding: 20px; border-radius: 8px; font-size: 1.1em; font-weight: bold; }
        .body-paragraph { margin: 15px 0; text-align: justify; }
        .cta { background: #007acc; color: white; padding: 20px; border-radius: 8px; font-weight: bold; text-align: center; }
        .full-text { background: #f9f9f9; padding: 20px; border-radius: 8px; border-left: 4px solid #ccc; white-space: pre-wrap; }
`

var (
	metaTone   = regexp.MustCompile(`Tono:\s*(.*?)\s*(?:\||$)`)
	metaDateRe = regexp.MustCompile(`Fecha:\s*(.*?)\s*$`)
	tagStrip   = regexp.MustCompile(`<[^>]*>`)
)

// HTMLWriter renders a standalone page with inline CSS. Values are escaped.
type HTMLWriter struct {
	// Now supplies the date of records without created_at. Defaults to time.Now.
	Now func() time.Time
}

func (HTMLWriter) Format() models.FileType { return models.FileTypeHTML }

func (h HTMLWriter) Encode(w io.Writer, rec *models.Record) error {
	e := html.EscapeString
	ct := &rec.Content
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<!DOCTYPE html>
<html lang="es">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
%s    </style>
</head>
<body>
    <div class="header">
        <h1 class="%s">%s</h1>
        <div class="%s"><strong>%s</strong> %s | <strong>%s</strong> %s</div>
    </div>
`, e(orPlaceholder(ct.Title, "Historia")), htmlStyle,
		classTitle, e(orPlaceholder(ct.Title, models.UntitledStory)),
		classMeta, labelTone, e(orPlaceholder(rec.Tone, placeholderTone)), labelDate, e(metaDate(rec, clock(h.Now))))

	section := func(heading, class, value string) {
		fmt.Fprintf(bw, "    <div class=\"section\">\n        <h2 class=\"section-title\">%s</h2>\n        <div class=\"%s\">%s</div>\n    </div>\n", heading, class, e(value))
	}
	section(headingHook, classHook, ct.Hook)
	fmt.Fprintf(bw, "    <div class=\"section\">\n        <h2 class=\"section-title\">%s</h2>\n", headingBody)
	for _, p := range ct.Body {
		fmt.Fprintf(bw, "        <div class=\"%s\">%s</div>\n", classBody, e(p))
	}
	bw.WriteString("    </div>\n")
	section(headingCTA, classCTA, ct.CallToAction)
	section(headingFullText, classFullText, ct.FullText)
	bw.WriteString("</body>\n</html>\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write HTML: %w", err)
	}
	return nil
}

// HTMLDOMParser locates fields by class token in the parsed document tree.
type HTMLDOMParser struct{}

func (HTMLDOMParser) Parse(name string, data []byte) (*models.Record, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse HTML %s: %w", name, err)
	}
	first := make(map[string]string)
	var body []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, class := range classList(n) {
				switch class {
				case classBody:
					if p := strings.TrimSpace(textContent(n)); p != "" {
						body = append(body, p)
					}
				case classTitle, classMeta, classHook, classCTA, classFullText:
					if _, ok := first[class]; !ok {
						first[class] = strings.TrimSpace(textContent(n))
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return htmlRecord(first, body), nil
}

// HTMLRegexParser matches the class literals with regular expressions and
// strips tags. Nested elements inside a field end the match early.
type HTMLRegexParser struct{}

var classPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for _, class := range []string{classTitle, classMeta, classHook, classBody, classCTA, classFullText} {
		m[class] = regexp.MustCompile(`(?i)<([a-z][a-z0-9]*)\s[^>]*class\s*=\s*"(?:[^"]*\s)?` + regexp.QuoteMeta(class) + `(?:\s[^"]*)?"[^>]*>`)
	}
	return m
}()

func (HTMLRegexParser) Parse(name string, data []byte) (*models.Record, error) {
	doc := string(data)
	if !strings.Contains(doc, "class=") {
		return nil, fmt.Errorf("parse HTML %s: no classed elements", name)
	}
	first := make(map[string]string)
	for _, class := range []string{classTitle, classMeta, classHook, classCTA, classFullText} {
		if vals := regexFields(doc, class, 1); len(vals) > 0 {
			first[class] = vals[0]
		}
	}
	var body []string
	for _, p := range regexFields(doc, classBody, -1) {
		if p != "" {
			body = append(body, p)
		}
	}
	return htmlRecord(first, body), nil
}

// regexFields returns the tag-stripped text between each element opening with
// class and the first closing tag of the same name after it.
func regexFields(doc, class string, n int) []string {
	var out []string
	for _, loc := range classPatterns[class].FindAllStringSubmatchIndex(doc, n) {
		start := loc[1]
		end := strings.Index(doc[start:], "</"+doc[loc[2]:loc[3]])
		if end < 0 {
			continue
		}
		out = append(out, stripTags(doc[start:start+end]))
	}
	return out
}

func htmlRecord(first map[string]string, body []string) *models.Record {
	rec := &models.Record{Platform: models.PlatformHTML}
	rec.Content.Title = fromPlaceholder(first[classTitle], models.UntitledStory)
	rec.Content.Hook = first[classHook]
	rec.Content.Body = body
	rec.Content.CallToAction = first[classCTA]
	rec.Content.FullText = first[classFullText]
	meta := strings.Join(strings.Fields(first[classMeta]), " ")
	if m := metaTone.FindStringSubmatch(meta); m != nil {
		rec.Tone = fromPlaceholder(m[1], placeholderTone)
	}
	if m := metaDateRe.FindStringSubmatch(meta); m != nil {
		rec.SourceDate = m[1]
	}
	return rec
}

func classList(n *html.Node) []string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return strings.Fields(a.Val)
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagStrip.ReplaceAllString(s, "")))
}
