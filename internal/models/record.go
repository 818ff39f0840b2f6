// Package models defines the story record, its provenance tags, and the
// result shape used at the remote boundary.
package models

import (
	"strings"
)

// FileType tags the archive format a record was loaded from.
type FileType string

const (
	FileTypeJSON     FileType = "json"
	FileTypeMarkdown FileType = "markdown"
	FileTypeHTML     FileType = "html"
	FileTypePDF      FileType = "pdf"
)

// FileTypes lists the archive formats in the order they are offered for saving.
var FileTypes = []FileType{FileTypeJSON, FileTypeMarkdown, FileTypeHTML, FileTypePDF}

// ParseFileType accepts format names as users type them ("JSON", "md", "Markdown").
func ParseFileType(s string) (FileType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FileTypeJSON, true
	case "markdown", "md":
		return FileTypeMarkdown, true
	case "html", "htm":
		return FileTypeHTML, true
	case "pdf":
		return FileTypePDF, true
	}
	return "", false
}

// Content is the generated text of a story.
type Content struct {
	Title        string   `json:"title,omitempty"`
	Hook         string   `json:"hook,omitempty"`
	Body         []string `json:"body,omitempty"`
	CallToAction string   `json:"call_to_action,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`
	FullText     string   `json:"full_text,omitempty"`
}

// Compose joins hook, body paragraphs, call to action and hashtags with blank
// lines. It does not read or update FullText.
func (c *Content) Compose() string {
	var parts []string
	if c.Hook != "" {
		parts = append(parts, c.Hook)
	}
	for _, p := range c.Body {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if c.CallToAction != "" {
		parts = append(parts, c.CallToAction)
	}
	if len(c.Hashtags) > 0 {
		parts = append(parts, strings.Join(c.Hashtags, " "))
	}
	return strings.Join(parts, "\n\n")
}

// UserSpecs are the choices made when a story was requested.
type UserSpecs struct {
	Platform        string `json:"platform,omitempty"`
	Tone            string `json:"tone,omitempty"`
	AdditionalSpecs string `json:"additional_specs,omitempty"`
}

// Record is one generated story. The JSON encoding of Record is the archive's
// lossless format.
type Record struct {
	ID         string     `json:"id,omitempty"`
	Content    Content    `json:"content"`
	Platform   Platform   `json:"platform,omitempty"`
	Tone       string     `json:"tone,omitempty"`
	CreatedAt  Timestamp  `json:"created_at,omitzero"`
	ImagePath  string     `json:"image_path,omitempty"`
	ImageURL   string     `json:"image_url,omitempty"`
	UserSpecs  *UserSpecs `json:"user_specs,omitempty"`
	EditedFrom string     `json:"edited_from,omitempty"`

	// Set by the archive when a record is loaded from disk.
	FileType    FileType `json:"file_type,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	Filepath    string   `json:"filepath,omitempty"`
	SourceDate  string   `json:"source_date,omitempty"`
	Unextracted bool     `json:"unextracted,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Content.Body = append([]string(nil), r.Content.Body...)
	c.Content.Hashtags = append([]string(nil), r.Content.Hashtags...)
	if r.UserSpecs != nil {
		specs := *r.UserSpecs
		c.UserSpecs = &specs
	}
	return &c
}

// StripArchive returns a copy of r without the fields the archive adds on load,
// so that saving a loaded record does not write its old location into the file.
func (r *Record) StripArchive() *Record {
	c := r.Clone()
	c.FileType = ""
	c.Filename = ""
	c.Filepath = ""
	c.SourceDate = ""
	c.Unextracted = false
	return c
}

// DisplayTitle returns the title or a placeholder for untitled stories.
func (r *Record) DisplayTitle() string {
	if t := strings.TrimSpace(r.Content.Title); t != "" {
		return t
	}
	return UntitledStory
}

// UntitledStory is shown and written in place of an empty title.
const UntitledStory = "Historia Sin Título"

// NormalizeHashtags trims tags, adds the leading "#" and drops empty and duplicate tags.
func NormalizeHashtags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		t = strings.TrimLeft(t, "#")
		if t == "" {
			continue
		}
		t = "#" + t
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
