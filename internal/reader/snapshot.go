package reader

// ChapterInfo summarises one chapter for clients.
type ChapterInfo struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Pages  int    `json:"pages"`
	Ready  bool   `json:"ready"`
	Failed bool   `json:"failed,omitempty"`
}

// Snapshot is a point-in-time view of a book's reading state.
type Snapshot struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Chapters    []ChapterInfo `json:"chapters"`
	Cursor      Cursor        `json:"cursor"`
	OverallPage int           `json:"overall_page"`
	TotalPages  int           `json:"total_pages"`
	Complete    bool          `json:"complete"`
	Progress    float64       `json:"progress"`
}

// Snapshot captures the book's chapters, cursor and page totals.
func (b *Book) Snapshot() Snapshot {
	s := Snapshot{
		ID:       b.ID,
		Title:    b.Title,
		Chapters: make([]ChapterInfo, len(b.chapters)),
		Cursor:   b.Cursor(),
		Progress: b.Progress(),
	}
	for i, c := range b.chapters {
		s.Chapters[i] = ChapterInfo{
			Index:  c.Index,
			Title:  c.Title,
			Pages:  c.PageCount(),
			Ready:  c.Layout() != nil,
			Failed: c.LoadErr != nil,
		}
	}
	s.OverallPage, _ = b.OverallPage()
	s.TotalPages, s.Complete = b.TotalPages()
	return s
}
