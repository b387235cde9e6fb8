package position

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps positions and bookmarks in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]Position
	bookmarks map[string]map[string]Bookmark
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]Position),
		bookmarks: make(map[string]map[string]Bookmark),
	}
}

func (s *MemoryStore) SavePosition(_ context.Context, p Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.BookID] = p
	return nil
}

func (s *MemoryStore) LoadPosition(_ context.Context, bookID string) (Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[bookID]
	if !ok {
		return Position{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) AddBookmark(_ context.Context, b Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.bookmarks[b.BookID]
	if !ok {
		m = make(map[string]Bookmark)
		s.bookmarks[b.BookID] = m
	}
	m[b.ID] = b
	return nil
}

// ListBookmarks returns a book's bookmarks ordered by ID.
func (s *MemoryStore) ListBookmarks(_ context.Context, bookID string) ([]Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Bookmark, 0, len(s.bookmarks[bookID]))
	for _, b := range s.bookmarks[bookID] {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Bookmark) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) DeleteBookmark(_ context.Context, bookID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookmarks[bookID][id]; !ok {
		return ErrNotFound
	}
	delete(s.bookmarks[bookID], id)
	return nil
}
