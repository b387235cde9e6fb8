package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/folio/internal/blocks"
	"github.com/dgallion1/folio/internal/linebreak"
	"github.com/dgallion1/folio/internal/reader"
)

// chapterParam resolves {n}, writing a 404 when it names no chapter.
func (s *Server) chapterParam(w http.ResponseWriter, r *http.Request) (*reader.Chapter, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		jsonError(w, "chapter must be an integer", http.StatusBadRequest)
		return nil, false
	}
	ch, err := sessionFrom(r).Book.Chapter(n)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return ch, true
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.chapterParam(w, r)
	if !ok {
		return
	}
	resp := map[string]any{
		"index":  ch.Index,
		"title":  ch.Title,
		"blocks": blocks.Nodes(ch.Blocks),
	}
	if ch.LoadErr != nil {
		resp["load_error"] = ch.LoadErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLines streams the chapter as continuous lines, one JSON object per
// line. Without ?width= the session's page width is used.
func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.chapterParam(w, r)
	if !ok {
		return
	}
	sess := sessionFrom(r)
	params := sess.Params()

	width := s.cfg.Geometry().Geometry(params).PageWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			jsonError(w, "width must be a positive number", http.StatusBadRequest)
			return
		}
		width = n
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	renderer := linebreak.New(s.orchestrator.Oracle(), width, params.Font)
	for line, err := range renderer.Stream(blocks.Units(ch.Blocks)) {
		if err != nil {
			s.log.Warn("line stream failed", "session", sess.ID, "chapter", ch.Index, "error", err)
			if err := enc.Encode(map[string]string{"error": err.Error()}); err != nil {
				s.log.Debug("line stream error not delivered", "session", sess.ID, "error", err)
			}
			return
		}
		if err := enc.Encode(line); err != nil {
			return
		}
		if flusher != nil && line.Spacer {
			flusher.Flush()
		}
		if r.Context().Err() != nil {
			return
		}
	}
	if flusher != nil {
		flusher.Flush()
	}
}
