// Package session keeps the per-user working state of the story workflow:
// the story being edited, what has happened to it, and whether it was approved.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/historias/internal/models"
)

var (
	// ErrNotFound is returned for an unknown, deleted or expired session.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned by Commit when the session changed after the
	// copy being committed was read.
	ErrConflict = errors.New("session changed concurrently")
)

// Entry is one line of a session's workflow log.
type Entry struct {
	At      models.Timestamp `json:"at"`
	Step    string           `json:"step"`
	Message string           `json:"message"`
}

// Context is the state of one workflow run. It is passed explicitly to the
// workflow functions; nothing reads it from globals.
type Context struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	CurrentStory *models.Record   `json:"current_story,omitempty"`
	Log          []Entry          `json:"log"`
	Approved     bool             `json:"approved"`
	CreatedAt    models.Timestamp `json:"created_at"`

	rev uint64
}

// New returns an empty context for userID.
func New(userID string) *Context {
	return &Context{
		ID:        uuid.NewString(),
		UserID:    userID,
		Log:       []Entry{},
		CreatedAt: models.Now(),
	}
}

// Record appends a log entry.
func (c *Context) Record(step, format string, args ...any) {
	c.Log = append(c.Log, Entry{At: models.Now(), Step: step, Message: fmt.Sprintf(format, args...)})
}

// SetStory replaces the current story and clears the approval.
func (c *Context) SetStory(rec *models.Record) {
	c.CurrentStory = rec
	c.Approved = false
}

// Clone returns a deep copy safe to hand out of the store.
func (c *Context) Clone() *Context {
	cp := *c
	cp.CurrentStory = c.CurrentStory.Clone()
	cp.Log = append([]Entry(nil), c.Log...)
	return &cp
}

// Store holds the contexts of the running server.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Context
	maxAge   time.Duration
}

// NewStore returns a store that forgets sessions untouched for maxAge.
// A zero maxAge keeps them until deleted.
func NewStore(maxAge time.Duration) *Store {
	return &Store{sessions: make(map[string]*Context), maxAge: maxAge}
}

// Create starts a session for userID.
func (s *Store) Create(userID string) *Context {
	c := New(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	s.sessions[c.ID] = c
	return c.Clone()
}

// Get returns a copy of the session with id.
func (s *Store) Get(id string) (*Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Update runs fn on the session under the store lock and returns a copy of
// the result. fn's error is returned unchanged and the session is left as fn
// left it. Use it for changes that do not block.
func (s *Store) Update(id string, fn func(*Context) error) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	err := fn(c)
	c.rev++
	return c.Clone(), err
}

// Commit stores c, a copy obtained from Get and changed outside the lock.
// It fails with ErrNotFound when the session was deleted or expired in the
// meantime, and with ErrConflict when another change was stored since the
// copy was read. A failed commit leaves the store untouched.
func (s *Store) Commit(c *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[c.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", c.ID, ErrNotFound)
	}
	if cur.rev != c.rev {
		return fmt.Errorf("session %s: %w", c.ID, ErrConflict)
	}
	next := c.Clone()
	next.rev++
	s.sessions[c.ID] = next
	c.rev = next.rev
	return nil
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expireLocked() {
	if s.maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.maxAge)
	for id, c := range s.sessions {
		last := c.CreatedAt.Time
		if n := len(c.Log); n > 0 {
			last = c.Log[n-1].At.Time
		}
		if last.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
