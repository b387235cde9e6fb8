package api

import (
	"net/http"
)

func (s *Server) handleLayoutStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":  s.cfg.MeasureBackend,
		"sessions": s.orchestrator.SessionCount(),
		"stats":    s.orchestrator.Stats(),
	})
}
