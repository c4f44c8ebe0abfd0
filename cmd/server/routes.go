package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/himanishpuri/maidata/pkg/logger"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(loggingMiddleware)

	// Root and health endpoints
	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// Stateless endpoints
	api.HandleFunc("/parse", s.handleParse).Methods(http.MethodPost)
	api.HandleFunc("/materialize", s.handleMaterialize).Methods(http.MethodPost)

	// Chart library endpoints
	api.HandleFunc("/charts", s.handleListCharts).Methods(http.MethodGet)
	api.HandleFunc("/charts", s.handleImportChart).Methods(http.MethodPost)
	api.HandleFunc("/charts/{id}", s.handleGetChart).Methods(http.MethodGet)
	api.HandleFunc("/charts/{id}", s.handleDeleteChart).Methods(http.MethodDelete)

	diff := api.PathPrefix("/charts/{id}/difficulties/{difficulty}").Subrouter()
	diff.HandleFunc("/inote", s.handleGetInote).Methods(http.MethodGet)
	diff.HandleFunc("/notes", s.handleGetNotes).Methods(http.MethodGet)
	diff.HandleFunc("/midi", s.handleGetMIDI).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("No route for %s %s", r.Method, r.URL.Path))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, fmt.Sprintf("%s not allowed on %s", r.Method, r.URL.Path))
	})

	// Wrap with CORS middleware
	return corsMiddleware(s.config.AllowedOrigins).Handler(router)
}

// corsMiddleware builds the CORS handler for the allowed origins
func corsMiddleware(allowedOrigins []string) *cors.Cors {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         3600,
	})
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		log := logger.GetLogger()
		log.Debugf("%s %s from %s", r.Method, r.URL.Path, getClientIP(r))

		next.ServeHTTP(wrapped, r)

		log.Infof("%s %s -> %d", r.Method, r.URL.Path, wrapped.statusCode)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// Start starts the HTTP server
func (s *Server) Start() error {
	handler := s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Infof("🚀 maidata server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                                          - Health check")
	s.log.Infof("   POST   /api/parse                                       - Parse instructions")
	s.log.Infof("   POST   /api/materialize                                 - Materialize instructions")
	s.log.Infof("   GET    /api/charts                                      - List all charts")
	s.log.Infof("   POST   /api/charts                                      - Import a maidata.txt")
	s.log.Infof("   GET    /api/charts/{id}                                 - Get chart by ID")
	s.log.Infof("   DELETE /api/charts/{id}                                 - Delete chart by ID")
	s.log.Infof("   GET    /api/charts/{id}/difficulties/{difficulty}/notes - Stored notes")
	s.log.Infof("   GET    /api/charts/{id}/difficulties/{difficulty}/inote - Stored instructions")
	s.log.Infof("   GET    /api/charts/{id}/difficulties/{difficulty}/midi  - MIDI preview")

	return http.ListenAndServe(addr, handler)
}
