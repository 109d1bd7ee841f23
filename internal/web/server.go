// Package web exposes the laser controller over HTTP: a JSON API for
// discovery, connection lifecycle, and the typed command surface, plus a
// WebSocket feed of controller events.
package web

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"laser-go-control/internal/laser"
	"laser-go-control/internal/script"
	"laser-go-control/internal/store"
)

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithSettings enables persistence of connection and operating parameters.
func WithSettings(st store.Store) ServerOption {
	return func(s *Server) {
		s.settings = st
	}
}

// WithMacros sets the macro engine and manager.
func WithMacros(engine *script.Engine, mgr *script.Manager) ServerOption {
	return func(s *Server) {
		s.engine = engine
		s.scriptMgr = mgr
	}
}

// WithVersion sets the application version string reported by the API.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server is the HTTP server for the control API.
type Server struct {
	ctrl           *laser.Controller
	wsHub          *WSHub
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	settings       store.Store
	scriptMgr      *script.Manager
	engine         *script.Engine
	version        string
	wg             sync.WaitGroup
	unsubEvents    func()
}

// NewServer creates a new web server.
func NewServer(ctrl *laser.Controller, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	s := &Server{
		ctrl:   ctrl,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	// Subscribe to all controller events and broadcast via WebSocket
	s.unsubEvents = ctrl.Events().OnAll(func(event laser.Event) {
		s.wsHub.Broadcast(event)
	})

	s.routes()
	return s, nil
}

// Stop gracefully shuts down the WebSocket hub and waits for goroutines.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	// Device state and discovery
	s.mux.HandleFunc("GET /api/state", s.handleAPIState)
	s.mux.HandleFunc("GET /api/ports", s.handleAPIListPorts)
	s.mux.HandleFunc("GET /api/discover", s.handleAPIDiscover)

	// Connection lifecycle
	s.mux.HandleFunc("POST /api/connect", s.handleAPIConnect)
	s.mux.HandleFunc("POST /api/disconnect", s.handleAPIDisconnect)

	// Operating parameters
	s.mux.HandleFunc("POST /api/enable", s.handleAPIEnable)
	s.mux.HandleFunc("POST /api/current", s.handleAPICurrent)
	s.mux.HandleFunc("POST /api/tec", s.handleAPITEC)
	s.mux.HandleFunc("POST /api/pwm", s.handleAPIPWM)
	s.mux.HandleFunc("POST /api/parameters/restore", s.handleAPIRestoreFactory)
	s.mux.HandleFunc("POST /api/parameters/save", s.handleAPISaveParameters)

	// Board diagnostics
	s.mux.HandleFunc("GET /api/board", s.handleAPIBoard)

	s.mux.HandleFunc("GET /api/settings", s.handleAPISettings)
	s.mux.HandleFunc("GET /api/version", s.handleAPIVersion)

	// Macros
	s.mux.HandleFunc("GET /api/macros", s.handleAPIListMacros)
	s.mux.HandleFunc("GET /api/macros/{id}", s.handleAPIGetMacro)
	s.mux.HandleFunc("POST /api/macros", s.handleAPICreateMacro)
	s.mux.HandleFunc("PUT /api/macros/{id}", s.handleAPIUpdateMacro)
	s.mux.HandleFunc("DELETE /api/macros/{id}", s.handleAPIDeleteMacro)
	s.mux.HandleFunc("POST /api/macros/{id}/run", s.handleAPIRunMacro)

	// WebSocket
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS: check Origin on mutating requests to prevent CSRF.
	if len(s.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if r.Method == http.MethodOptions {
				// Preflight request.
				if s.isOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	if s.apiKey != "" {
		// Only require API key for /api/ endpoints. The WebSocket upgrade is
		// not API-key-protected because browsers cannot send custom headers
		// on WS upgrade.
		if strings.HasPrefix(r.URL.Path, "/api/") {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
	}
	s.mux.ServeHTTP(w, r)
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
