package archive

import (
	"fmt"
	"time"

	"github.com/hyperjump/historias/internal/models"
)

// HTML parsing strategies.
const (
	HTMLStrategyDOM   = "dom"
	HTMLStrategyRegex = "regex"
)

// Capabilities selects the parser implementation for the formats that have
// more than one. They are resolved once, when the Registry is built.
type Capabilities struct {
	// HTMLStrategy is "dom" (default) or "regex".
	HTMLStrategy string
	// PDFText enables text extraction from PDF files. When false, PDFs load as
	// stub records marked Unextracted.
	PDFText bool
	// Lines extracts PDF text rows. Required when PDFText is set.
	Lines LineExtractor
	// Now is the clock used for the date line of records without created_at.
	Now func() time.Time
}

// Registry holds the serializer and parser chosen for each format.
type Registry struct {
	serializers map[models.FileType]Serializer
	parsers     map[models.FileType]Parser
}

// NewRegistry resolves caps into one serializer and one parser per format.
func NewRegistry(caps Capabilities) (*Registry, error) {
	md := MarkdownCodec{Now: caps.Now}
	r := &Registry{
		serializers: map[models.FileType]Serializer{
			models.FileTypeJSON:     JSONCodec{},
			models.FileTypeMarkdown: md,
			models.FileTypeHTML:     HTMLWriter{Now: caps.Now},
			models.FileTypePDF:      PDFWriter{Now: caps.Now},
		},
		parsers: map[models.FileType]Parser{
			models.FileTypeJSON:     JSONCodec{},
			models.FileTypeMarkdown: md,
		},
	}

	switch caps.HTMLStrategy {
	case "", HTMLStrategyDOM:
		r.parsers[models.FileTypeHTML] = HTMLDOMParser{}
	case HTMLStrategyRegex:
		r.parsers[models.FileTypeHTML] = HTMLRegexParser{}
	default:
		return nil, fmt.Errorf("unknown HTML strategy %q", caps.HTMLStrategy)
	}

	if caps.PDFText {
		if caps.Lines == nil {
			return nil, fmt.Errorf("PDF text enabled without a line extractor")
		}
		r.parsers[models.FileTypePDF] = PDFParser{Lines: caps.Lines}
	} else {
		r.parsers[models.FileTypePDF] = PDFStubParser{}
	}
	return r, nil
}

// Serializer returns the serializer for format.
func (r *Registry) Serializer(format models.FileType) (Serializer, error) {
	s, ok := r.serializers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return s, nil
}

// Parser returns the parser for format.
func (r *Registry) Parser(format models.FileType) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return p, nil
}
