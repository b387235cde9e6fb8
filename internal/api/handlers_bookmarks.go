package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	list, err := s.orchestrator.Bookmarks(r.Context(), sessionFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookmarks": list})
}

// handleAddBookmark bookmarks the current page. The body is optional.
func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	b, err := s.orchestrator.AddBookmark(r.Context(), sessionFrom(r), req.Label)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.DeleteBookmark(r.Context(), sessionFrom(r), chi.URLParam(r, "bid")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
