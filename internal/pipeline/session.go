package pipeline

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/folio/internal/paginate"
	"github.com/dgallion1/folio/internal/reader"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is one open book and the display parameters its reader last
// asked for.
type Session struct {
	ID        string    `json:"session_id"`
	BookID    string    `json:"book_id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`

	Book *reader.Book `json:"-"`

	mu       sync.Mutex
	params   paginate.Params
	lastUsed time.Time
	limiter  *rate.Limiter
}

// NewSession creates a session whose layout requests are limited to r per
// second with the given burst.
func NewSession(id, bookID, filename string, book *reader.Book, params paginate.Params, r float64, burst int) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		BookID:    bookID,
		Filename:  filename,
		CreatedAt: now,
		Book:      book,
		params:    params,
		lastUsed:  now,
		limiter:   rate.NewLimiter(rate.Limit(r), burst),
	}
}

// Params returns the session's current layout parameters.
func (s *Session) Params() paginate.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams records new layout parameters.
func (s *Session) SetParams(p paginate.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	s.lastUsed = time.Now()
}

// Touch marks the session as used.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
}

// AllowLayout reports whether a layout request fits the session's rate.
func (s *Session) AllowLayout() bool {
	return s.limiter.Allow()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// SessionStore is a thread-safe in-memory session registry with TTL
// eviction.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (s *SessionStore) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Get returns the session and marks it used.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Touch()
	return sess, nil
}

// Delete removes a session, reporting whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns their
// IDs.
func (s *SessionStore) Cleanup() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.ttl {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// ContentHashHex computes SHA-256 of content and returns hex string. It
// identifies a book across sessions.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
