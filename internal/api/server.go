package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/folio/internal/config"
	"github.com/dgallion1/folio/internal/pipeline"
)

// Server is the HTTP API server for folio.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/books", s.handleOpen)
		r.Route("/api/books/{id}", func(r chi.Router) {
			r.Use(s.sessionContext)

			r.Get("/", s.handleSnapshot)
			r.Delete("/", s.handleClose)
			r.Put("/layout", s.handleLayout)
			r.Get("/page", s.handlePage)
			r.Post("/next", s.handleNext)
			r.Post("/prev", s.handlePrev)
			r.Post("/goto", s.handleGoTo)

			r.Get("/chapters/{n}/blocks", s.handleBlocks)
			r.Get("/chapters/{n}/lines", s.handleLines)

			r.Get("/bookmarks", s.handleListBookmarks)
			r.Post("/bookmarks", s.handleAddBookmark)
			r.Delete("/bookmarks/{bid}", s.handleDeleteBookmark)
		})

		r.Get("/api/stats/layout", s.handleLayoutStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.orchestrator.SessionCount(),
	})
}
