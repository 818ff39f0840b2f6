// Package archive persists stories as JSON, Markdown, HTML and PDF files in a
// single directory and reads them back.
//
// Only JSON round-trips without loss. The other formats are reconstructed on a
// best-effort basis and tagged with the format they came from.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/historias/internal/models"
)

// Placeholders written for empty fields. Parsers map them back to "".
const (
	placeholderTone = "No especificado"
	displayDate     = "02/01/2006 15:04"
)

// Serializer renders a record into one archive format.
type Serializer interface {
	Format() models.FileType
	Encode(w io.Writer, rec *models.Record) error
}

// Parser reconstructs a record from the bytes of one archived file.
// name is the base filename and is only used for stub records and messages.
type Parser interface {
	Parse(name string, data []byte) (*models.Record, error)
}

// JSONCodec is the lossless format: the record as an indented JSON object.
type JSONCodec struct{}

func (JSONCodec) Format() models.FileType { return models.FileTypeJSON }

// Encode writes rec with a two-space indent and without escaping non-ASCII or markup.
func (JSONCodec) Encode(w io.Writer, rec *models.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// jsonRecord reads created_at raw so that a malformed date does not reject
// the whole file.
type jsonRecord struct {
	*models.Record
	CreatedAt json.RawMessage `json:"created_at,omitempty"`
}

// Parse decodes data as stored. Absent fields stay absent. A created_at that
// is not a timestamp string is left zero for the archive's date fallback.
func (JSONCodec) Parse(name string, data []byte) (*models.Record, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var rec models.Record
	raw := jsonRecord{Record: &rec}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	var ts models.Timestamp
	if len(raw.CreatedAt) > 0 && json.Unmarshal(raw.CreatedAt, &ts) == nil {
		rec.CreatedAt = ts
	}
	return &rec, nil
}

// orPlaceholder returns s, or alt when s is blank.
func orPlaceholder(s, alt string) string {
	if s == "" {
		return alt
	}
	return s
}

// fromPlaceholder undoes orPlaceholder.
func fromPlaceholder(s, alt string) string {
	if s == alt {
		return ""
	}
	return s
}

// metaDate is the date shown in the metadata line of the document formats.
func metaDate(rec *models.Record, now time.Time) string {
	if !rec.CreatedAt.IsZero() {
		return rec.CreatedAt.Format(displayDate)
	}
	return now.Format(displayDate)
}
