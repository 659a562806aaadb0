package web

import (
	"net/http"

	appLog "diskdash/internal/log"
	"diskdash/internal/settings"
)

// settingsResponse mirrors the shape dashboard front-ends already expect.
type settingsResponse struct {
	Success       bool          `json:"success"`
	Settings      settings.Tree `json:"settings"`
	ServerVersion string        `json:"server_version,omitempty"`
}

func (s *Server) respondSettings(w http.ResponseWriter, t settings.Tree) {
	writeJSON(w, http.StatusOK, settingsResponse{
		Success:       true,
		Settings:      t,
		ServerVersion: s.cache.ServerVersion(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	t, err := s.cache.Get(r.Context())
	if err != nil {
		appLog.Error("api settings: load failed", err)
		writeError(w, http.StatusBadGateway, "failed to load settings")
		return
	}
	s.respondSettings(w, t)
}

// handleSaveSettings accepts a partial settings document; keys not present
// keep their current values.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Tree
	if err := decodeBody(r, &patch, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body: "+err.Error())
		return
	}

	t, err := s.cache.Save(r.Context(), patch)
	if err != nil {
		appLog.Error("api settings: save failed", err)
		writeError(w, http.StatusBadGateway, "failed to save settings")
		return
	}
	s.respondSettings(w, t)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	t, err := s.cache.Reset(r.Context())
	if err != nil {
		appLog.Error("api settings: reset failed", err)
		writeError(w, http.StatusBadGateway, "failed to reset settings")
		return
	}
	s.respondSettings(w, t)
}

func (s *Server) handleRefreshSettings(w http.ResponseWriter, r *http.Request) {
	t, err := s.cache.Refresh(r.Context())
	if err != nil {
		appLog.Error("api settings: refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to refresh settings")
		return
	}
	s.respondSettings(w, t)
}
