// Package storage persists stories in SQLite and uploaded images in
// S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/hyperjump/historias/internal/models"
)

// ErrNotFound is returned when a story does not exist for the given user.
var ErrNotFound = errors.New("historia no encontrada")

// StoryStore is the remote story database. Every operation is scoped to one user.
type StoryStore interface {
	// Insert stores rec under a new id and returns the stored record.
	Insert(ctx context.Context, userID string, rec *models.Record) (*models.Record, error)
	// Update replaces the story with the given id.
	Update(ctx context.Context, userID, id string, rec *models.Record) (*models.Record, error)
	Get(ctx context.Context, userID, id string) (*models.Record, error)
	// List returns the user's stories, newest first.
	List(ctx context.Context, userID string, limit int) ([]*models.Record, error)
	Delete(ctx context.Context, userID, id string) error
	Count(ctx context.Context, userID string) (int64, error)
	Close() error
}

// ObjectStore holds uploaded images.
type ObjectStore interface {
	// PutImage uploads an image under "<userID>/<name>" and returns the object key.
	PutImage(ctx context.Context, userID, name string, r io.Reader, size int64, contentType string) (string, error)
	// PublicURL returns the public address of an object key.
	PublicURL(key string) string
}
