package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/historias/internal/models"
)

// Archive is a directory of story files in any of the supported formats.
// Files are written and read synchronously; nothing is cached between calls.
type Archive struct {
	dir      string
	prefix   string
	registry *Registry
	now      func() time.Time
	logger   *zap.Logger
}

// ArchiveOption configures an Archive.
type ArchiveOption func(*Archive)

// WithLogger sets the logger used to report skipped files.
func WithLogger(l *zap.Logger) ArchiveOption {
	return func(a *Archive) { a.logger = l }
}

// WithPrefix sets the prefix of derived filenames.
func WithPrefix(prefix string) ArchiveOption {
	return func(a *Archive) { a.prefix = prefix }
}

// WithClock replaces time.Now for derived filenames and created_at fallbacks.
func WithClock(now func() time.Time) ArchiveOption {
	return func(a *Archive) { a.now = now }
}

// New returns an archive rooted at dir. The directory is created on first save.
func New(dir string, registry *Registry, opts ...ArchiveOption) *Archive {
	a := &Archive{
		dir:      dir,
		prefix:   DefaultPrefix,
		registry: registry,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// Dir returns the archive directory.
func (a *Archive) Dir() string { return a.dir }

// Save writes rec in format and returns the path written. An empty filename is
// derived from the prefix and the current time; a file of the same name is
// overwritten. Archive annotations on rec are not written.
func (a *Archive) Save(rec *models.Record, format models.FileType, filename string) (string, error) {
	s, err := a.registry.Serializer(format)
	if err != nil {
		return "", err
	}
	if filename == "" {
		filename = Filename(a.prefix, a.now(), format)
	} else if filepath.Base(filename) != filename {
		return "", fmt.Errorf("filename %q must not contain a directory", filename)
	}

	var buf bytes.Buffer
	if err := s.Encode(&buf, rec.StripArchive()); err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(a.dir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	a.logger.Debug("story saved", zap.String("path", path), zap.String("format", string(format)))
	return path, nil
}

// SaveAll writes rec once per format, in order, all under the same timestamp.
// It stops at the first failure and returns the paths written so far.
func (a *Archive) SaveAll(rec *models.Record, formats []models.FileType) ([]string, error) {
	now := a.now()
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path, err := a.Save(rec, format, Filename(a.prefix, now, format))
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Scan loads every recognised file in the archive, newest first. Files that
// fail to parse are logged and skipped. A missing directory is an empty archive.
func (a *Archive) Scan(ctx context.Context) ([]*models.Record, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	var records []*models.Record
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !IsArchiveFile(entry.Name()) {
			continue
		}
		rec, err := a.Load(entry.Name())
		if err != nil {
			a.logger.Warn("skipping archived file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	SortNewestFirst(records)
	return records, nil
}

// Load parses one archived file by name and annotates it with its location and
// format. A missing created_at is taken from the filename stamp, then the file
// modification time, then the current time.
func (a *Archive) Load(name string) (rec *models.Record, err error) {
	if filepath.Base(name) != name || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid archive file name %q", name)
	}
	format, ok := FormatOf(name)
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(name))
	}
	p, err := a.registry.Parser(format)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(a.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("parse %s: %v", name, r)
		}
	}()
	rec, err = p.Parse(name, data)
	if err != nil {
		return nil, err
	}
	rec.FileType = format
	rec.Filename = name
	rec.Filepath = path
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = a.fallbackCreatedAt(name, info)
	}
	return rec, nil
}

// Delete removes one archived file.
func (a *Archive) Delete(name string) error {
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid archive file name %q", name)
	}
	if _, ok := FormatOf(name); !ok {
		return fmt.Errorf("unsupported file type %q", filepath.Ext(name))
	}
	if err := os.Remove(filepath.Join(a.dir, name)); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (a *Archive) fallbackCreatedAt(name string, info fs.FileInfo) models.Timestamp {
	if t, ok := StampFromFilename(name); ok {
		return models.NewTimestamp(t)
	}
	if info != nil && !info.ModTime().IsZero() {
		return models.NewTimestamp(info.ModTime().Local())
	}
	return models.NewTimestamp(a.now())
}

// SortNewestFirst orders records by created_at, newest first. Equal timestamps
// keep their input order.
func SortNewestFirst(records []*models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[j].CreatedAt.Before(records[i].CreatedAt)
	})
}

// IsArchiveFile reports whether name has one of the archive extensions.
func IsArchiveFile(name string) bool {
	_, ok := FormatOf(name)
	return ok && !strings.HasPrefix(filepath.Base(name), ".")
}
