// Package web exposes the planner over a JSON HTTP API.
package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"planner/internal/auth"
	"planner/internal/config"
	"planner/internal/ics"
	appLog "planner/internal/log"
	"planner/internal/service"
)

// Deps are the services the API is built on.
type Deps struct {
	Events  *service.EventService
	Users   *service.UserService
	Auth    *service.AuthService
	Fetcher *ics.Fetcher
}

// Server provides the HTTP API.
type Server struct {
	cfg     *config.Config
	loc     *time.Location
	events  *service.EventService
	users   *service.UserService
	auth    *service.AuthService
	fetcher *ics.Fetcher
	router  chi.Router
	now     func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, d Deps) *Server {
	s := &Server{
		cfg:     cfg,
		loc:     cfg.Location(),
		events:  d.Events,
		users:   d.Users,
		auth:    d.Auth,
		fetcher: d.Fetcher,
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	if s.fetcher == nil {
		s.fetcher = ics.NewFetcher(nil)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/me", s.handleMe)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Get("/suggest-color", s.handleSuggestColor)
				r.Get("/{id}", s.handleGetUser)
				r.Patch("/{id}", s.handleUpdateUser)
				r.Delete("/{id}", s.handleDeleteUser)
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", s.handleListEvents)
				r.Post("/", s.handleCreateEvent)
				r.Get("/{id}", s.handleGetEvent)
				r.Patch("/{id}", s.handleUpdateEvent)
				r.Delete("/{id}", s.handleDeleteEvent)
			})

			r.Get("/occurrences", s.handleOccurrences)
			r.Post("/reload", s.handleReload)

			r.Route("/calendar", func(r chi.Router) {
				r.Get("/day", s.handleCalendarDay)
				r.Get("/hour", s.handleCalendarHour)
				r.Get("/week", s.handleCalendarWeek)
				r.Get("/month", s.handleCalendarMonth)
			})

			r.Get("/export.ics", s.handleExport)
			r.Post("/import", s.handleImport)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// requestLogger writes one access line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			appLog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// requireAuth accepts "Authorization: Bearer <token>" and stores the user
// id in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="planner"`)
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		uid, err := s.auth.Authenticate(strings.TrimSpace(token))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="planner", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), uid)))
	})
}
