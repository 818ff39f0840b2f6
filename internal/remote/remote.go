// Package remote wraps the story database and the image bucket behind calls
// that never fail outright: every outcome is a models.Result the caller can
// show as a warning.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/historias/internal/models"
	"github.com/hyperjump/historias/internal/storage"
)

// ErrObjectsDisabled is reported when an upload is requested without object storage.
var ErrObjectsDisabled = errors.New("object storage not configured")

// Client is the remote boundary used by the save flow and the API.
type Client struct {
	stories storage.StoryStore
	objects storage.ObjectStore
	logger  *zap.Logger
}

// NewClient returns a client. objects may be nil when uploads are disabled.
func NewClient(stories storage.StoryStore, objects storage.ObjectStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{stories: stories, objects: objects, logger: logger}
}

// SaveStory inserts rec for userID.
func (c *Client) SaveStory(ctx context.Context, userID string, rec *models.Record) models.Result[*models.Record] {
	return logResult(c.logger, "save story", wrap(c.stories.Insert(ctx, userID, rec.StripArchive())))
}

// UpdateStory replaces the story with id.
func (c *Client) UpdateStory(ctx context.Context, userID, id string, rec *models.Record) models.Result[*models.Record] {
	return logResult(c.logger, "update story", wrap(c.stories.Update(ctx, userID, id, rec.StripArchive())))
}

// GetStories lists the user's stories, newest first.
func (c *Client) GetStories(ctx context.Context, userID string, limit int) models.Result[[]*models.Record] {
	recs, err := c.stories.List(ctx, userID, limit)
	if recs == nil && err == nil {
		recs = []*models.Record{}
	}
	return logResult(c.logger, "list stories", models.From(recs, err))
}

// GetStory returns one story.
func (c *Client) GetStory(ctx context.Context, userID, id string) models.Result[*models.Record] {
	return logResult(c.logger, "get story", wrap(c.stories.Get(ctx, userID, id)))
}

// DeleteStory removes one story and returns its id.
func (c *Client) DeleteStory(ctx context.Context, userID, id string) models.Result[string] {
	return logResult(c.logger, "delete story", models.From(id, c.stories.Delete(ctx, userID, id)))
}

// UploadImage uploads data as "<userID>/<name>" and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, userID, name string, data []byte) models.Result[string] {
	if c.objects == nil {
		return logResult(c.logger, "upload image", models.Fail[string](ErrObjectsDisabled))
	}
	key, err := c.objects.PutImage(ctx, userID, name, bytes.NewReader(data), int64(len(data)), contentType(name, data))
	if err != nil {
		return logResult(c.logger, "upload image", models.Fail[string](err))
	}
	return models.OK(c.objects.PublicURL(key))
}

// UploadImageFile reads path and uploads it under its base name.
func (c *Client) UploadImageFile(ctx context.Context, userID, path string) models.Result[string] {
	data, err := os.ReadFile(path)
	if err != nil {
		return logResult(c.logger, "upload image", models.Fail[string](fmt.Errorf("read image: %w", err)))
	}
	return c.UploadImage(ctx, userID, filepath.Base(path), data)
}

// ObjectsEnabled reports whether uploads are possible.
func (c *Client) ObjectsEnabled() bool { return c.objects != nil }

func wrap(rec *models.Record, err error) models.Result[*models.Record] {
	return models.From(rec, err)
}

func logResult[T any](logger *zap.Logger, op string, r models.Result[T]) models.Result[T] {
	if !r.Success {
		logger.Warn("remote call failed", zap.String("op", op), zap.String("error", r.Error))
	}
	return r
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
