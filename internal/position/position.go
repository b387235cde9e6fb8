// Package position persists reading positions and bookmarks keyed by book
// identity.
package position

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no position or bookmark exists for a key.
var ErrNotFound = errors.New("not found")

// Position is the last reading position of a book. Chapter and Page are
// 0-based.
type Position struct {
	BookID    string    `json:"book_id"`
	Chapter   int       `json:"chapter"`
	Page      int       `json:"page"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bookmark is a labelled reading position.
type Bookmark struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Chapter   int       `json:"chapter"`
	Page      int       `json:"page"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store saves positions and bookmarks.
type Store interface {
	SavePosition(ctx context.Context, p Position) error
	LoadPosition(ctx context.Context, bookID string) (Position, error)
	AddBookmark(ctx context.Context, b Bookmark) error
	ListBookmarks(ctx context.Context, bookID string) ([]Bookmark, error)
	DeleteBookmark(ctx context.Context, bookID, id string) error
}
