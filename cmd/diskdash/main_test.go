package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"diskdash/internal/config"
	"diskdash/internal/daterange"
	"diskdash/internal/model"
	"diskdash/internal/settings"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "diskdash "+version+"\n", out)
}

func TestMergeFromStdin(t *testing.T) {
	out, err := runCLI(t, `{"theme": "dark", "layout": "", "metrics": {"notify_level": 1}}`,
		"merge", "--defaults", "", "--output", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, "material", got["layout"], "empty string keeps default")
	metrics := got["metrics"].(map[string]any)
	assert.EqualValues(t, 1, metrics["notify_level"])
	assert.EqualValues(t, 60, metrics["missed_ping_timeout_minutes"])
}

func TestMergeWithDefaultsFile(t *testing.T) {
	dir := t.TempDir()
	defaultsPath := filepath.Join(dir, "defaults.yaml")
	overridePath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(defaultsPath, []byte("theme: system\nline_stroke: straight\n"), 0o600))
	require.NoError(t, os.WriteFile(overridePath, []byte("line_stroke: null\ntemperature_unit: fahrenheit\n"), 0o600))

	out, err := runCLI(t, "", "merge", "--defaults", defaultsPath, "--output", "yaml", overridePath)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "system", got["theme"])
	assert.Equal(t, "straight", got["line_stroke"])
	assert.Equal(t, "fahrenheit", got["temperature_unit"])
}

func TestMergeRejectsUnknownOutput(t *testing.T) {
	_, err := runCLI(t, "{}", "merge", "--defaults", "", "--output", "toml")
	assert.Error(t, err)
}

func TestRenderMonth(t *testing.T) {
	color.NoColor = true

	m := daterange.New(
		daterange.WithLocation(time.UTC),
		daterange.WithClock(func() time.Time { return time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC) }),
	)
	m.ApplyExternal(model.UpdateRequest{
		Start: time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC),
	})

	var buf bytes.Buffer
	renderMonth(&buf, m, 1)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	assert.Equal(t, "October 2026", lines[0])
	assert.Equal(t, "Su Mo Tu We Th Fr Sa", lines[1])
	// October 1st 2026 is a Thursday.
	assert.Equal(t, "             1  2  3", lines[2])
	assert.Equal(t, " 4  5  6  7  8  9 10", lines[3])
	assert.Equal(t, "25 26 27 28 29 30 31", lines[len(lines)-1])
}

func TestCalendarCommand(t *testing.T) {
	color.NoColor = true

	out, err := runCLI(t, "", "calendar", "--start", "2026-10-03", "--end", "2026-11-12",
		"--tz", "UTC", "--time-format", "24")
	require.NoError(t, err)
	assert.Contains(t, out, "03/10/2026 00:00  to  12/11/2026 00:00")
	assert.Contains(t, out, "October 2026")
	assert.Contains(t, out, "November 2026")

	_, err = runCLI(t, "", "calendar", "--start", "2026-10-03", "--end", "", "--tz", "UTC")
	assert.Error(t, err)

	_, err = runCLI(t, "", "calendar", "--start", "yesterday", "--end", "2026-10-04", "--tz", "UTC")
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SettingsPath = filepath.Join(t.TempDir(), "settings.yaml")
	_, ok := newSource(cfg).(*settings.FileStore)
	assert.True(t, ok)

	cfg.Upstream = &config.UpstreamConfig{URL: "http://backend:8080", TimeoutSeconds: 5}
	_, ok = newSource(cfg).(*settings.HTTPSource)
	assert.True(t, ok)
}
