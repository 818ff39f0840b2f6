// Package search keeps an in-memory keyword index of the story archive and
// answers queries against it.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/historias/internal/archive"
	"github.com/hyperjump/historias/internal/models"
)

// snippetRunes is the length of the text excerpt returned with each hit.
const snippetRunes = 160

// Engine indexes the records of one archive. Records are keyed by filename.
type Engine struct {
	archive *archive.Archive
	index   *Index
	logger  *zap.Logger

	mu      sync.RWMutex
	records map[string]*models.Record
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an empty engine over arch. Call Rebuild to fill it.
func NewEngine(arch *archive.Archive, opts ...EngineOption) (*Engine, error) {
	index, err := NewIndex()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		archive: arch,
		index:   index,
		logger:  zap.NewNop(),
		records: make(map[string]*models.Record),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// Rebuild scans the archive and indexes every record, dropping entries for
// files that no longer exist. It returns the number of indexed records.
func (e *Engine) Rebuild(ctx context.Context) (int, error) {
	records, err := e.archive.Scan(ctx)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if err := e.index.Put(rec.Filename, rec); err != nil {
			e.logger.Warn("failed to index record", zap.String("file", rec.Filename), zap.Error(err))
			continue
		}
		e.records[rec.Filename] = rec
		seen[rec.Filename] = true
	}
	for key := range e.records {
		if !seen[key] {
			_ = e.index.Delete(key)
			delete(e.records, key)
		}
	}
	e.logger.Debug("search index rebuilt", zap.Int("records", len(e.records)))
	return len(e.records), nil
}

// Refresh reloads one archived file. A file that no longer loads is removed
// from the index.
func (e *Engine) Refresh(name string) error {
	rec, err := e.archive.Load(name)
	if err != nil {
		e.Remove(name)
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.index.Put(name, rec); err != nil {
		return fmt.Errorf("index %s: %w", name, err)
	}
	e.records[name] = rec
	return nil
}

// Remove drops one file from the index.
func (e *Engine) Remove(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.records[name]; !ok {
		return
	}
	if err := e.index.Delete(name); err != nil {
		e.logger.Warn("failed to remove record from index", zap.String("file", name), zap.Error(err))
	}
	delete(e.records, name)
}

// Len returns the number of indexed records.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records)
}

// Close releases the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Close()
}

// Search runs q and returns the matching records, best first.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	matches, err := e.index.Search(q.Query, q.Limit, q.Fuzzy, q.Platform)
	if err != nil {
		return nil, err
	}
	resp := &models.SearchResponse{Query: q.Query, Hits: make([]*models.SearchHit, 0, len(matches))}
	for _, m := range matches {
		rec, ok := e.records[m.Key]
		if !ok {
			continue
		}
		resp.Hits = append(resp.Hits, &models.SearchHit{
			Key:     m.Key,
			Score:   m.Score,
			Snippet: Snippet(searchText(rec), q.Query, snippetRunes),
			Record:  rec.Clone(),
		})
	}
	resp.Total = len(resp.Hits)
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func searchText(rec *models.Record) string {
	if rec.Content.FullText != "" {
		return rec.Content.FullText
	}
	return rec.Content.Compose()
}
