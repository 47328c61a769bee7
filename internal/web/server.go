// Package web provides the HTTP API for fields, contacts, imports and exports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/logging"
	mw "github.com/JonMunkholm/contacts/internal/web/middleware"
)

// Server is the HTTP server for the contacts API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)

	// Security hardening
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(s.cfg.Rate.RequestsPerMinute, time.Minute))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Imports run under IMPORT_TIMEOUT inside the service, so they sit
		// outside the request timeout.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(s.rateLimit(s.cfg.Rate.ImportLimit, time.Minute))
			}
			r.Post("/import/contacts/dry-run", s.handleImportDryRun)
			r.Post("/import/contacts", s.handleImport)
		})

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			}

			// Field definitions
			r.Get("/fields", s.handleListFields)
			r.Post("/fields", s.handleCreateField)
			r.Put("/fields/{key}", s.handleUpdateField)
			r.Delete("/fields/{key}", s.handleDeleteField)

			// Contacts
			r.Get("/contacts", s.handleListContacts)
			r.Post("/contacts", s.handleCreateContact)
			r.Get("/contacts/{id}", s.handleGetContact)
			r.Put("/contacts/{id}", s.handleUpdateContact)
			r.Delete("/contacts/{id}", s.handleDeleteContact)

			// Interactions and reminders
			r.Get("/interactions", s.handleListInteractions)
			r.Post("/interactions", s.handleCreateInteraction)
			r.Put("/interactions/{id}", s.handleUpdateInteraction)
			r.Delete("/interactions/{id}", s.handleDeleteInteraction)

			r.Get("/reminders", s.handleListReminders)
			r.Post("/reminders", s.handleCreateReminder)
			r.Put("/reminders/{id}", s.handleUpdateReminder)
			r.Delete("/reminders/{id}", s.handleDeleteReminder)

			// Reports and export
			r.Get("/import/reports/{token}.csv", s.handleDownloadReport)
			r.Get("/export/contacts.csv", s.handleExportContacts)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleHealth reports store reachability and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"imports": s.service.Limiter().Status(),
	}
	if err := s.service.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	writeJSONStatus(w, status, body)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// rateLimit returns a per client IP budget of limit requests per period,
// backed by an in-memory limiter store. RemoteAddr has already been
// resolved by TrustedRealIP.
func (s *Server) rateLimit(limit int, period time.Duration) func(http.Handler) http.Handler {
	lim := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: int64(limit)})
	retryAfter := strconv.Itoa(int(period.Seconds()))

	m := stdlib.NewMiddleware(lim,
		stdlib.WithKeyGetter(func(r *http.Request) string {
			return clientIP(r.RemoteAddr)
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeErrorBody(w, http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "Too many requests",
				Action:  "Please wait a minute and try again",
				Code:    "RATE002",
			})
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			s.respondError(w, r, err)
		}),
	)
	return m.Handler
}

// writeJSON wraps v in the {"data": ...} envelope with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, envelope{Data: v})
}

// writeCreated wraps v in the envelope with status 201.
func writeCreated(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusCreated, envelope{Data: v})
}

type envelope struct {
	Data any `json:"data"`
}

// writeJSONStatus encodes v as JSON.
// Logs encoding errors since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
