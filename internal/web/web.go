package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"diskdash/internal/config"
	appLog "diskdash/internal/log"
	"diskdash/internal/settings"
)

// Server provides the settings and date-range HTTP API.
type Server struct {
	cfg   *config.Config
	cache *settings.Cache
	mux   *http.ServeMux
	now   func() time.Time

	// Date-range picker sessions keyed by ID. Each session has its own lock;
	// sessMu only guards the map.
	sessMu   sync.RWMutex
	sessions map[string]*rangeSession
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, cache *settings.Cache) *Server {
	s := &Server{
		cfg:      cfg,
		cache:    cache,
		mux:      http.NewServeMux(),
		now:      time.Now,
		sessions: make(map[string]*rangeSession),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="diskdash", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("POST /api/settings", s.handleSaveSettings)
	s.mux.HandleFunc("POST /api/settings/reset", s.handleResetSettings)
	s.mux.HandleFunc("POST /api/settings/refresh", s.handleRefreshSettings)

	s.mux.HandleFunc("POST /api/ranges", s.handleCreateRange)
	s.mux.HandleFunc("GET /api/ranges/{id}", s.withSession(s.handleGetRange))
	s.mux.HandleFunc("PUT /api/ranges/{id}", s.withSession(s.handleUpdateRange))
	s.mux.HandleFunc("DELETE /api/ranges/{id}", s.handleDeleteRange)
	s.mux.HandleFunc("POST /api/ranges/{id}/pick", s.withSession(s.handlePickDay))
	s.mux.HandleFunc("POST /api/ranges/{id}/time", s.withSession(s.handleEditTime))
	s.mux.HandleFunc("POST /api/ranges/{id}/time-range", s.withSession(s.handleTimeRange))
	s.mux.HandleFunc("POST /api/ranges/{id}/navigate", s.withSession(s.handleNavigate))
	s.mux.HandleFunc("POST /api/ranges/{id}/preset", s.withSession(s.handlePreset))
	s.mux.HandleFunc("GET /api/ranges/{id}/calendar", s.withSession(s.handleCalendar))

	s.mux.HandleFunc("GET /api/report-window", s.handleReportWindow)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// decodeBody reads a JSON request body into v. An empty body is accepted
// when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return errors.New("request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		if optional {
			return nil
		}
		return errors.New("request body is required")
	}
	return err
}
