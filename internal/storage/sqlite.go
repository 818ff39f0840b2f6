package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/historias/internal/models"
)

const storyStatusPublished = "published"

// SQLiteStore implements StoryStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		tone TEXT,
		images TEXT,
		metadata TEXT,
		status TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stories_user_created ON stories(user_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// storyMetadata is the free-form metadata column. Platform lives here, the
// way the hosted table stored it.
type storyMetadata struct {
	Platform        string `json:"platform,omitempty"`
	Tone            string `json:"tone,omitempty"`
	AdditionalSpecs string `json:"additional_specs,omitempty"`
	EditedFrom      string `json:"edited_from,omitempty"`
	ImagePath       string `json:"image_path,omitempty"`
}

type storyRow struct {
	title, content, tone, images, metadata string
}

func toRow(rec *models.Record) (storyRow, error) {
	content, err := json.Marshal(rec.Content)
	if err != nil {
		return storyRow{}, fmt.Errorf("failed to marshal content: %w", err)
	}
	var images []string
	if rec.ImageURL != "" {
		images = []string{rec.ImageURL}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return storyRow{}, fmt.Errorf("failed to marshal images: %w", err)
	}
	meta := storyMetadata{
		Platform:   string(rec.Platform),
		EditedFrom: rec.EditedFrom,
		ImagePath:  rec.ImagePath,
	}
	if rec.UserSpecs != nil {
		meta.Platform = rec.UserSpecs.Platform
		meta.Tone = rec.UserSpecs.Tone
		meta.AdditionalSpecs = rec.UserSpecs.AdditionalSpecs
	}
	if meta.Platform == "" {
		meta.Platform = string(rec.Platform)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return storyRow{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return storyRow{
		title:    rec.Content.Title,
		content:  string(content),
		tone:     rec.Tone,
		images:   string(imagesJSON),
		metadata: string(metaJSON),
	}, nil
}

// Insert stores rec under a new id and returns the stored record.
func (s *SQLiteStore) Insert(ctx context.Context, userID string, rec *models.Record) (*models.Record, error) {
	row, err := toRow(rec)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	created := rec.CreatedAt
	if created.IsZero() {
		created = models.NewTimestamp(s.now())
	}
	updated := models.NewTimestamp(s.now())

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stories (id, user_id, title, content, tone, images, metadata, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, row.title, row.content, row.tone, row.images, row.metadata, storyStatusPublished,
		sortableTime(created), sortableTime(updated),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert story: %w", err)
	}
	return s.Get(ctx, userID, id)
}

// Update replaces title, content, tone, images and metadata of an existing story.
func (s *SQLiteStore) Update(ctx context.Context, userID, id string, rec *models.Record) (*models.Record, error) {
	row, err := toRow(rec)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE stories SET title = ?, content = ?, tone = ?, images = ?, metadata = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		row.title, row.content, row.tone, row.images, row.metadata, sortableTime(models.NewTimestamp(s.now())),
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update story: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Get(ctx, userID, id)
}

// Get returns a story by id.
func (s *SQLiteStore) Get(ctx context.Context, userID, id string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, tone, images, metadata, created_at
		 FROM stories WHERE id = ? AND user_id = ?`, id, userID)
	rec, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns up to limit stories of userID, newest first. limit <= 0 means no limit.
func (s *SQLiteStore) List(ctx context.Context, userID string, limit int) ([]*models.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, tone, images, metadata, created_at
		 FROM stories WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a story.
func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count returns the number of stories of userID.
func (s *SQLiteStore) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stories WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanStory maps a row to the local record shape. The platform comes from metadata.
func scanStory(sc scanner) (*models.Record, error) {
	var (
		rec                                  models.Record
		title, tone, images, metadata, stamp sql.NullString
		content                              string
	)
	if err := sc.Scan(&rec.ID, &title, &content, &tone, &images, &metadata, &stamp); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &rec.Content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content of %s: %w", rec.ID, err)
	}
	if rec.Content.Title == "" {
		rec.Content.Title = title.String
	}
	rec.Tone = tone.String

	if images.String != "" {
		var urls []string
		if err := json.Unmarshal([]byte(images.String), &urls); err == nil && len(urls) > 0 {
			rec.ImageURL = urls[0]
		}
	}
	if metadata.String != "" {
		var meta storyMetadata
		if err := json.Unmarshal([]byte(metadata.String), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata of %s: %w", rec.ID, err)
		}
		rec.Platform = models.ParsePlatform(meta.Platform)
		rec.EditedFrom = meta.EditedFrom
		rec.ImagePath = meta.ImagePath
		if meta.Platform != "" || meta.Tone != "" || meta.AdditionalSpecs != "" {
			rec.UserSpecs = &models.UserSpecs{
				Platform:        meta.Platform,
				Tone:            meta.Tone,
				AdditionalSpecs: meta.AdditionalSpecs,
			}
		}
	}
	ts, err := parseSortable(stamp.String)
	if err != nil {
		return nil, fmt.Errorf("bad created_at on %s: %w", rec.ID, err)
	}
	rec.CreatedAt = ts
	return &rec, nil
}

const sortableLayout = "2006-01-02T15:04:05.000000Z07:00"

// sortableTime stores UTC with fixed-width fractions so text order is time order.
func sortableTime(t models.Timestamp) string {
	return t.UTC().Format(sortableLayout)
}

func parseSortable(s string) (models.Timestamp, error) {
	if s == "" {
		return models.Timestamp{}, nil
	}
	t, err := time.Parse(sortableLayout, s)
	if err != nil {
		return models.Timestamp{}, err
	}
	return models.NewTimestamp(t.Local()), nil
}
