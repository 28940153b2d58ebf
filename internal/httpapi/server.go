// Package httpapi exposes the form service over HTTP: schema management,
// public form rendering and submission, and the entries filter/export
// surface.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/fields"
	"github.com/formforge/formforge/internal/filestore"
	"github.com/formforge/formforge/internal/logger"
	"github.com/formforge/formforge/internal/mailer"
	"github.com/formforge/formforge/internal/schema"
)

// ViewerFunc establishes who is making the request. The host application
// owns authentication; this seam only carries the outcome.
type ViewerFunc func(*http.Request) schema.Viewer

// Config wires a Server.
type Config struct {
	Schemas  schema.Store
	Entries  entries.Store
	Registry *fields.Registry

	// Blobs and Bucket back file-upload fields; nil disables uploads.
	Blobs  filestore.Store
	Bucket string

	// Mailer sends submission emails; nil disables them.
	Mailer *mailer.Mailer

	// Viewer defaults to treating every request as anonymous.
	Viewer ViewerFunc

	// CSVDelimiter defaults to ','.
	CSVDelimiter rune

	Log *logger.Logger
}

// Server carries the handler dependencies.
type Server struct {
	cfg Config
}

// NewServer validates and applies config defaults.
func NewServer(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = fields.Default()
	}
	if cfg.Viewer == nil {
		cfg.Viewer = func(*http.Request) schema.Viewer { return schema.Viewer{} }
	}
	if cfg.CSVDelimiter == 0 {
		cfg.CSVDelimiter = ','
	}
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	return &Server{cfg: cfg}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/forms", func(r chi.Router) {
		r.Get("/", s.handleListForms)
		r.Post("/", s.handleCreateForm)

		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", s.handleGetForm)
			r.Post("/", s.handleSubmit)
			r.Put("/", s.handleUpdateForm)
			r.Delete("/", s.handleDeleteForm)

			r.Post("/fields", s.handleCreateField)
			r.Put("/fields/{fieldID}", s.handleUpdateField)
			r.Delete("/fields/{fieldID}", s.handleDeleteField)

			r.Get("/entries", s.handleEntries)
			r.Post("/entries", s.handleEntries)
			r.Get("/entries/export", s.handleExport)
			r.Post("/entries/delete", s.handleDeleteEntries)
		})
	})

	r.Get("/files/{valueID}", s.handleFileDownload)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.cfg.Log.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Logger().
			Info("request")
	})
}
