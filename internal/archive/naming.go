package archive

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/historias/internal/models"
)

// DefaultPrefix is the filename prefix of stories written without an explicit name.
const DefaultPrefix = "historia"

const stampLayout = "20060102_150405"

// stampPattern finds the YYYYMMDD_HHMMSS stamp that follows the prefix in archive filenames.
var stampPattern = regexp.MustCompile(`_(\d{8}_\d{6})\.[A-Za-z0-9]+$`)

// extensions maps file extensions to archive formats.
var extensions = map[string]models.FileType{
	".json": models.FileTypeJSON,
	".md":   models.FileTypeMarkdown,
	".html": models.FileTypeHTML,
	".pdf":  models.FileTypePDF,
}

// Extension returns the file extension, dot included, written for format.
func Extension(format models.FileType) string {
	for ext, ft := range extensions {
		if ft == format {
			return ext
		}
	}
	return ""
}

// FormatOf returns the archive format of a filename, by extension.
func FormatOf(name string) (models.FileType, bool) {
	ft, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return ft, ok
}

// Filename derives "<prefix>_YYYYMMDD_HHMMSS<ext>" from t.
func Filename(prefix string, t time.Time, format models.FileType) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_" + t.Format(stampLayout) + Extension(format)
}

// StampFromFilename returns the local time embedded in an archive filename.
// Names that do not follow the pattern report false.
func StampFromFilename(name string) (time.Time, bool) {
	m := stampPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(stampLayout, m[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
