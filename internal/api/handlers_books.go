package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/folio/internal/measure"
	"github.com/dgallion1/folio/internal/paginate"
	"github.com/dgallion1/folio/internal/pipeline"
	"github.com/dgallion1/folio/internal/position"
	"github.com/dgallion1/folio/internal/reader"
	"github.com/dgallion1/folio/internal/source"
)

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !source.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	sess, err := s.orchestrator.Open(r.Context(), filename, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"filename":   sess.Filename,
		"book":       sess.Book.Snapshot(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Book.Snapshot())
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.Close(sessionFrom(r).ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// layoutRequest carries display parameters. Omitted font fields keep the
// session's current values.
type layoutRequest struct {
	ViewportHeight float64 `json:"viewport_height"`
	ViewportWidth  float64 `json:"viewport_width"`
	FontFamily     string  `json:"font_family"`
	FontSize       float64 `json:"font_size"`
	LineHeight     float64 `json:"line_height"`
	Align          string  `json:"align"`
}

func (req layoutRequest) params(current paginate.Params) (paginate.Params, error) {
	if req.ViewportHeight < 0 || req.ViewportWidth < 0 || req.FontSize < 0 || req.LineHeight < 0 {
		return paginate.Params{}, errors.New("dimensions must not be negative")
	}
	p := paginate.Params{
		ViewportHeight: req.ViewportHeight,
		ViewportWidth:  req.ViewportWidth,
		Font:           current.Font,
	}
	if req.FontFamily != "" {
		p.Font.Family = req.FontFamily
	}
	if req.FontSize > 0 {
		p.Font.Size = req.FontSize
	}
	if req.LineHeight > 0 {
		p.Font.LineHeight = req.LineHeight
	}
	if req.Align != "" {
		a, err := measure.ParseAlignment(req.Align)
		if err != nil {
			return paginate.Params{}, err
		}
		p.Font.Align = a
	}
	return p, nil
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if !sess.AllowLayout() {
		jsonError(w, "too many layout requests", http.StatusTooManyRequests)
		return
	}

	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	params, err := req.params(sess.Params())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.orchestrator.Layout(r.Context(), sess, params); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Book.Snapshot())
}

// pageResponse is the page under the cursor with its place in the book.
type pageResponse struct {
	Cursor       reader.Cursor `json:"cursor"`
	ChapterTitle string        `json:"chapter_title"`
	Page         paginate.Page `json:"page"`
	PageCount    int           `json:"page_count"`
	OverallPage  int           `json:"overall_page"`
	TotalPages   int           `json:"total_pages"`
	Complete     bool          `json:"complete"`
	Progress     float64       `json:"progress"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, r.Context(), sessionFrom(r))
}

// writePage renders the current page, laying out its chapter first if it
// has no pages yet.
func (s *Server) writePage(w http.ResponseWriter, ctx context.Context, sess *pipeline.Session) {
	page, cur, err := sess.Book.CurrentPage()
	if errors.Is(err, reader.ErrNoLayout) {
		if _, err := s.orchestrator.Layout(ctx, sess, sess.Params()); err != nil {
			s.writeError(w, err)
			return
		}
		page, cur, err = sess.Book.CurrentPage()
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	ch, err := sess.Book.Chapter(cur.Chapter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := pageResponse{
		Cursor:       cur,
		ChapterTitle: ch.Title,
		Page:         page,
		PageCount:    ch.PageCount(),
		Progress:     sess.Book.Progress(),
	}
	resp.OverallPage, resp.Complete = sess.Book.OverallPage()
	resp.TotalPages, _ = sess.Book.TotalPages()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if _, err := s.orchestrator.Next(r.Context(), sess); err != nil {
		s.writeError(w, err)
		return
	}
	s.writePage(w, r.Context(), sess)
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if _, err := s.orchestrator.Previous(r.Context(), sess); err != nil {
		s.writeError(w, err)
		return
	}
	s.writePage(w, r.Context(), sess)
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	var req reader.Cursor
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r)
	if _, err := s.orchestrator.GoTo(r.Context(), sess, req.Chapter, req.Page); err != nil {
		s.writeError(w, err)
		return
	}
	s.writePage(w, r.Context(), sess)
}

// writeError maps domain errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrSessionNotFound), errors.Is(err, position.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, pipeline.ErrQueueFull):
		code = http.StatusServiceUnavailable
	case errors.Is(err, reader.ErrOutOfRange), errors.Is(err, pipeline.ErrSuperseded):
		code = http.StatusConflict
	case errors.Is(err, source.ErrUnsupported):
		code = http.StatusUnsupportedMediaType
	case errors.Is(err, paginate.ErrMeasure):
		code = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	jsonError(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
