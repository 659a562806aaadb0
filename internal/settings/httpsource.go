package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "diskdash/internal/log"
)

// HTTPSource reads and writes settings on a remote dashboard backend via
// GET/POST {base}/api/settings. Successful reads are kept on disk with their
// ETag / Last-Modified so an unreachable backend degrades to the last
// known settings.
type HTTPSource struct {
	base     string
	client   *http.Client
	cacheDir string
}

// cacheMeta holds HTTP cache metadata for the settings endpoint.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// settingsResponse is the wire shape of both GET and POST responses.
type settingsResponse struct {
	Success       bool   `json:"success"`
	Settings      Tree   `json:"settings"`
	ServerVersion string `json:"server_version"`
}

// NewHTTPSource creates a source for the backend at base. An empty
// cacheDir disables the disk fallback.
func NewHTTPSource(base, cacheDir string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSource{
		base:     strings.TrimRight(base, "/"),
		client:   client,
		cacheDir: cacheDir,
	}
}

func (h *HTTPSource) endpoint() string {
	return h.base + "/api/settings"
}

func (h *HTTPSource) Load(ctx context.Context) (Snapshot, error) {
	url := h.endpoint()
	meta, _ := h.loadMeta()
	cached, _ := h.loadBody()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("settings fetch network error, using cached body", err, "url", redactURL(url))
			return decodeSnapshot(cached)
		}
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Snapshot{}, err
		}
		snap, err := decodeSnapshot(body)
		if err != nil {
			return Snapshot{}, err
		}
		newMeta := cacheMeta{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := h.saveCache(newMeta, body); err != nil {
			appLog.Error("settings cache save failed", err, "url", redactURL(url))
		}
		return snap, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Snapshot{}, errors.New("received 304 Not Modified but no cached settings available")
		}
		appLog.Debug("settings not modified; using cache", "url", redactURL(url))
		return decodeSnapshot(cached)

	default:
		if len(cached) > 0 {
			appLog.Error("settings fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(url), "status", resp.StatusCode)
			return decodeSnapshot(cached)
		}
		return Snapshot{}, fmt.Errorf("settings fetch: %s", resp.Status)
	}
}

func (h *HTTPSource) Save(ctx context.Context, settings Tree) (Snapshot, error) {
	payload, err := json.Marshal(settings)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal settings: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return Snapshot{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("settings save: %s", resp.Status)
	}
	return decodeSnapshot(body)
}

func decodeSnapshot(body []byte) (Snapshot, error) {
	var r settingsResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return Snapshot{}, fmt.Errorf("decode settings response: %w", err)
	}
	return Snapshot{Settings: r.Settings, ServerVersion: r.ServerVersion}, nil
}

func (h *HTTPSource) loadMeta() (cacheMeta, error) {
	var meta cacheMeta
	if h.cacheDir == "" {
		return meta, errors.New("cache disabled")
	}
	data, err := os.ReadFile(filepath.Join(h.cacheDir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func (h *HTTPSource) loadBody() ([]byte, error) {
	if h.cacheDir == "" {
		return nil, errors.New("cache disabled")
	}
	return os.ReadFile(filepath.Join(h.cacheDir, "settings.json"))
}

func (h *HTTPSource) saveCache(meta cacheMeta, body []byte) error {
	if h.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(h.cacheDir, 0o700); err != nil {
		return err
	}
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(h.cacheDir, "settings.json"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(h.cacheDir, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only, e.g.
// https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"
	i := strings.Index(u, "://")
	if i == -1 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
