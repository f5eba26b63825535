package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/lagoon/pkg/live"
	"github.com/chazu/lagoon/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lagoon.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultMatchesPackages(t *testing.T) {
	c := Default()
	assert.InDelta(t, 20.0, c.Live.PreviewHz, 1e-9)
	assert.Equal(t, 200, c.Live.RebuildMS)

	assert.Equal(t, live.DefaultOptions(), c.LiveOptions())
	assert.Equal(t, 50*time.Millisecond, c.LiveOptions().PreviewInterval)

	assert.Equal(t, pool.DefaultOptions(), c.BuildOptions())
	assert.Equal(t, slog.LevelInfo, c.LogLevel())
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Build, c.Build)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
[live]
preview_hz = 10
rebuild_ms = 350

[build]
wall_thickness = 0.3
oval_segments = 96

[tiling]
tile_size = 0.5

[log]
level = "debug"
`)
	c, err := Load(path)
	require.NoError(t, err)

	lo := c.LiveOptions()
	assert.Equal(t, 100*time.Millisecond, lo.PreviewInterval)
	assert.Equal(t, 350*time.Millisecond, lo.RebuildDelay)

	bo := c.BuildOptions()
	assert.Equal(t, 0.3, bo.WallThickness)
	assert.Equal(t, 96, bo.OvalSegments)
	assert.Equal(t, 0.5, bo.TileSize)
	// Unset keys keep their defaults.
	assert.Equal(t, pool.DefaultOptions().StepLength, bo.StepLength)

	assert.Equal(t, slog.LevelDebug, c.LogLevel())
}

func TestLoadParseError(t *testing.T) {
	path := writeFile(t, "[live]\npreview_hz = \"fast\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "config: "), err.Error())
	assert.Contains(t, err.Error(), path)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvPreviewHz, "30")
	t.Setenv(EnvRebuildMS, "500")
	t.Setenv(EnvLogLevel, "warn")

	path := writeFile(t, "[live]\npreview_hz = 10\n")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30.0, c.Live.PreviewHz)
	assert.Equal(t, 500*time.Millisecond, c.LiveOptions().RebuildDelay)
	assert.Equal(t, slog.LevelWarn, c.LogLevel())
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv(EnvRebuildMS, "soon")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 200, c.Live.RebuildMS)
}

func TestLiveOptionsFallback(t *testing.T) {
	c := Default()
	c.Live.PreviewHz = 0
	c.Live.RebuildMS = -4
	assert.Equal(t, live.DefaultOptions(), c.LiveOptions())
	assert.Equal(t, 50*time.Millisecond, c.LiveOptions().PreviewInterval)
}

func TestEncodeRoundTrip(t *testing.T) {
	c := Default()
	c.Build.WallThickness = 0.25
	data, err := c.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "wall_thickness = 0.25")

	back, err := Load(writeFile(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, c.BuildOptions(), back.BuildOptions())
}
