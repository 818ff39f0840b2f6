// Package workflow runs the story lifecycle on a session: generate, edit,
// approve, save locally and remotely, and start again from an old story.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/historias/internal/archive"
	"github.com/hyperjump/historias/internal/generate"
	"github.com/hyperjump/historias/internal/models"
	"github.com/hyperjump/historias/internal/remote"
	"github.com/hyperjump/historias/internal/session"
)

var (
	// ErrNoStory is returned when an operation needs a current story and there is none.
	ErrNoStory = errors.New("no hay una historia actual")
	// ErrNotApproved is returned when saving a story that was not approved.
	ErrNotApproved = errors.New("la historia no ha sido aprobada")
	// ErrNotConfigured is returned when an optional collaborator (generator,
	// transcriber, story database) was not set up.
	ErrNotConfigured = errors.New("not configured")
)

// SaveOptions selects where a story is saved.
type SaveOptions struct {
	Formats []models.FileType
	// Remote also stores the story in the story database.
	Remote bool
	// UpdateExisting updates the remote story named by the record's id or
	// edited_from instead of inserting a new one.
	UpdateExisting bool
}

// SaveReport describes what a save did.
type SaveReport struct {
	Paths    []string `json:"paths"`
	RemoteID string   `json:"remote_id,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Template names the story to start from: an archive file or a remote id.
type Template struct {
	File string `json:"file,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Service carries the collaborators of the workflow. Per-run state lives in
// the session.Context passed to each call.
type Service struct {
	archive     *archive.Archive
	generator   *generate.Generator
	transcriber generate.Transcriber
	remote      *remote.Client
	formats     []models.FileType
	onSaved     func(paths []string)
	now         func() time.Time
	logger      *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithRemote enables remote saves and templates.
func WithRemote(c *remote.Client) ServiceOption {
	return func(s *Service) { s.remote = c }
}

// WithTranscriber enables voice input for additional specs.
func WithTranscriber(t generate.Transcriber) ServiceOption {
	return func(s *Service) { s.transcriber = t }
}

// WithDefaultFormats sets the formats used when SaveOptions names none.
func WithDefaultFormats(formats []models.FileType) ServiceOption {
	return func(s *Service) { s.formats = formats }
}

// WithSavedHook is called with the paths of every successful local save.
func WithSavedHook(fn func(paths []string)) ServiceOption {
	return func(s *Service) { s.onSaved = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService returns a workflow service. generator may be nil when only the
// archive side is used.
func NewService(arch *archive.Archive, generator *generate.Generator, opts ...ServiceOption) *Service {
	s := &Service{
		archive:   arch,
		generator: generator,
		formats:   []models.FileType{models.FileTypeJSON},
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Generate produces a new story and makes it the session's current story.
func (s *Service) Generate(ctx context.Context, sc *session.Context, req generate.Request) (*generate.Outcome, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("generation: %w", ErrNotConfigured)
	}
	out, err := s.generator.Generate(ctx, req)
	if err != nil {
		sc.Record("generate", "error: %v", err)
		return nil, err
	}
	sc.SetStory(out.Record)
	sc.Record("generate", "%s: %s", out.Record.Platform, out.Record.DisplayTitle())
	for _, w := range out.Warnings {
		sc.Record("generate", "warning: %s", w)
	}
	return out, nil
}

// Edit replaces the content of the current story. An empty full text is
// recomposed from the other fields.
func (s *Service) Edit(sc *session.Context, content models.Content) (*models.Record, error) {
	if sc.CurrentStory == nil {
		return nil, ErrNoStory
	}
	rec := sc.CurrentStory.Clone()
	content.Hashtags = models.NormalizeHashtags(content.Hashtags)
	if strings.TrimSpace(content.FullText) == "" {
		content.FullText = content.Compose()
	}
	rec.Content = content
	sc.SetStory(rec)
	sc.Record("edit", "content updated")
	return rec, nil
}

// Approve marks the current story as ready to save.
func (s *Service) Approve(sc *session.Context) error {
	if sc.CurrentStory == nil {
		return ErrNoStory
	}
	sc.Approved = true
	sc.Record("approve", "%s", sc.CurrentStory.DisplayTitle())
	return nil
}

// Save writes the approved current story to the archive and, when asked, to
// the story database. Local failures are errors; remote failures are
// returned as warnings in the report.
func (s *Service) Save(ctx context.Context, sc *session.Context, opts SaveOptions) (*SaveReport, error) {
	if sc.CurrentStory == nil {
		return nil, ErrNoStory
	}
	if !sc.Approved {
		return nil, ErrNotApproved
	}
	rec := sc.CurrentStory.Clone()
	report := &SaveReport{}

	if opts.Remote && s.remote == nil {
		report.Warnings = append(report.Warnings, "El almacenamiento remoto no está configurado.")
		opts.Remote = false
	}
	if opts.Remote && rec.ImageURL == "" && rec.ImagePath != "" && s.remote.ObjectsEnabled() {
		res := s.remote.UploadImageFile(ctx, sc.UserID, rec.ImagePath)
		if res.Success {
			rec.ImageURL = res.Data
			report.ImageURL = res.Data
		} else {
			report.Warnings = append(report.Warnings, "No se pudo subir la imagen: "+res.Error)
		}
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = s.formats
	}
	paths, err := s.archive.SaveAll(rec, formats)
	report.Paths = paths
	if len(paths) > 0 && s.onSaved != nil {
		s.onSaved(paths)
	}
	if err != nil {
		sc.Record("save", "error: %v", err)
		return report, fmt.Errorf("save story: %w", err)
	}
	sc.Record("save", "%d archivo(s) guardado(s)", len(paths))

	if opts.Remote {
		res := s.saveRemote(ctx, sc.UserID, rec, opts.UpdateExisting)
		if res.Success {
			rec.ID = res.Data.ID
			report.RemoteID = res.Data.ID
			sc.Record("save", "remote id %s", res.Data.ID)
		} else {
			report.Warnings = append(report.Warnings, "No se pudo guardar en la base de datos: "+res.Error)
			sc.Record("save", "remote error: %s", res.Error)
		}
	}

	approved := sc.Approved
	sc.SetStory(rec)
	sc.Approved = approved
	return report, nil
}

func (s *Service) saveRemote(ctx context.Context, userID string, rec *models.Record, update bool) models.Result[*models.Record] {
	if update {
		id := rec.ID
		if id == "" {
			id = rec.EditedFrom
		}
		if id != "" {
			return s.remote.UpdateStory(ctx, userID, id, rec)
		}
		s.logger.Debug("update requested without an id, inserting")
	}
	return s.remote.SaveStory(ctx, userID, rec)
}

// UseTemplate loads an archived or remote story as the new current story.
// The copy has no id, a fresh created_at, and edited_from set to the
// original's id when it has one.
func (s *Service) UseTemplate(ctx context.Context, sc *session.Context, tpl Template) (*models.Record, error) {
	var (
		src *models.Record
		err error
	)
	switch {
	case tpl.File != "":
		src, err = s.archive.Load(tpl.File)
		if err != nil {
			return nil, err
		}
	case tpl.ID != "":
		if s.remote == nil {
			return nil, fmt.Errorf("remote storage: %w", ErrNotConfigured)
		}
		res := s.remote.GetStory(ctx, sc.UserID, tpl.ID)
		if !res.Success {
			return nil, res.Err()
		}
		src = res.Data
	default:
		return nil, fmt.Errorf("template needs a file or an id")
	}

	rec := src.StripArchive()
	if rec.ID != "" {
		rec.EditedFrom = rec.ID
	}
	rec.ID = ""
	rec.CreatedAt = models.NewTimestamp(s.now())
	sc.SetStory(rec)
	sc.Record("template", "from %s%s", tpl.File, tpl.ID)
	return rec, nil
}

// TranscribeSpecs turns a voice note into additional specs text.
func (s *Service) TranscribeSpecs(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if s.transcriber == nil {
		return "", fmt.Errorf("transcription: %w", ErrNotConfigured)
	}
	return s.transcriber.Transcribe(ctx, audio, mimeType)
}

// ParseFormats converts format names ("json", "md", "HTML") to file types,
// dropping duplicates. An unknown name is an error.
func ParseFormats(names []string) ([]models.FileType, error) {
	var out []models.FileType
	seen := map[models.FileType]bool{}
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			ft, ok := models.ParseFileType(part)
			if !ok {
				return nil, fmt.Errorf("unknown format %q (use json, markdown, html or pdf)", part)
			}
			if !seen[ft] {
				seen[ft] = true
				out = append(out, ft)
			}
		}
	}
	return out, nil
}
