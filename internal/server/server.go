// Package server provides the abbreviation HTTP server: the HTML pages, the
// JSON search endpoint, the seed endpoint and the infrastructure probes.
package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/catalog"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/config"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/csrf"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/events"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/httputil"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/metrics"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/store"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/view"
	"git.cscs.ch/openchami/chamicore-abbrev/pkg/types"
)

const (
	serviceName  = "chamicore-abbrev"
	maxBodyBytes = 1 << 20
)

// Renderer renders a named HTML page.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// CSRFProtector issues and verifies anti-forgery tokens for the forms.
type CSRFProtector interface {
	Issue(w http.ResponseWriter, r *http.Request) (string, error)
	Verify(r *http.Request) error
}

// Server wraps HTTP routes and dependencies.
type Server struct {
	store     store.Store
	cfg       config.Config
	version   string
	commit    string
	buildDate string

	renderer  Renderer
	csrf      CSRFProtector
	publisher events.Publisher
	metrics   *metrics.Metrics
	catalog   []model.Entry

	router chi.Router
}

// Option configures server construction.
type Option func(*Server)

// WithRenderer sets the page renderer.
func WithRenderer(r Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithCSRF sets the anti-forgery protector.
func WithCSRF(p CSRFProtector) Option {
	return func(s *Server) { s.csrf = p }
}

// WithPublisher sets the change-event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithMetrics sets the metrics collectors. Ignored when metrics are disabled.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCatalog sets the entries inserted by GET /seed.
func WithCatalog(entries []model.Entry) Option {
	return func(s *Server) { s.catalog = entries }
}

// New constructs the abbreviation server. Collaborators not supplied through
// options are built from cfg.
func New(st store.Store, cfg config.Config, version, commit, buildDate string, opts ...Option) (*Server, error) {
	s := &Server{
		store:     st,
		cfg:       cfg,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.renderer == nil {
		r, err := view.New()
		if err != nil {
			return nil, fmt.Errorf("loading page templates: %w", err)
		}
		s.renderer = r
	}
	if s.csrf == nil {
		p, err := csrf.New(cfg.SecretKey, cfg.CSRFTTL, csrf.WithSecureCookie(cfg.SecureCookies))
		if err != nil {
			return nil, fmt.Errorf("creating anti-forgery protector: %w", err)
		}
		s.csrf = p
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if !cfg.MetricsEnabled {
		s.metrics = nil
	} else if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.catalog == nil {
		entries, err := catalog.Load()
		if err != nil {
			return nil, fmt.Errorf("loading seed catalog: %w", err)
		}
		s.catalog = entries
	}

	s.router = s.buildRouter()
	return s, nil
}

// Router returns the configured router.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLogger(log.Logger))
	r.Use(middleware.Recoverer)
	r.Use(httputil.SecureHeaders())
	r.Use(middleware.RequestSize(maxBodyBytes))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.NotFound(s.handleNotFound)

	r.Group(func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/readiness", s.handleReadiness)
		r.Get("/version", s.handleVersion)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}
	})

	r.Group(func(r chi.Router) {
		r.Get("/", s.handleIndex)
		r.Get("/create", s.handleCreateForm)
		r.Post("/create", s.handleCreate)
		r.Get("/update/{id:[0-9]+}", s.handleUpdateForm)
		r.Post("/update/{id:[0-9]+}", s.handleUpdate)
		r.Get("/delete/{id:[0-9]+}", s.handleDelete)
	})

	r.Group(func(r chi.Router) {
		r.Get("/get_abbreviations", s.handleGetAbbreviations)
		r.Get("/seed", s.handleSeed)
	})

	return r
}

// ---------------------------------------------------------------------------
// Infrastructure handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
		httputil.RespondProblem(w, r, http.StatusServiceUnavailable, "database is not reachable")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, types.VersionInfo{
		Service:   serviceName,
		Version:   s.version,
		Commit:    s.commit,
		BuildDate: s.buildDate,
	})
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// renderPage renders into a buffer so template failures still produce a
// clean 500 instead of a truncated page.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, page, data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("page", page).Msg("failed to render page")
		http.Error(w, "an unexpected error occurred", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) respondInternalError(w http.ResponseWriter) {
	http.Error(w, "an unexpected error occurred", http.StatusInternalServerError)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusNotFound, view.PageNotFound, view.NotFoundPage{
		Message: "The requested page does not exist.",
	})
}

// publish delivers a change event. Failures are logged only: the store write
// has already committed.
func (s *Server) publish(ctx context.Context, evt events.Event, buildErr error) {
	logger := log.Ctx(ctx)
	if buildErr != nil {
		logger.Warn().Err(buildErr).Msg("failed to build change event")
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		logger.Warn().Err(err).Str("event_type", evt.Type).Str("event_id", evt.ID).Msg("failed to publish change event")
	}
}
