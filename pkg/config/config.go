// Package config loads lagoon settings from a TOML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/chazu/lagoon/pkg/live"
	"github.com/chazu/lagoon/pkg/logging"
	"github.com/chazu/lagoon/pkg/pool"
	"github.com/chazu/lagoon/pkg/uv"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables consulted by Load.
const (
	EnvPreviewHz = "LAGOON_PREVIEW_HZ"
	EnvRebuildMS = "LAGOON_REBUILD_MS"
	EnvLogLevel  = "LAGOON_LOG_LEVEL"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config is the whole settings file. Each table maps to one section.
type Config struct {
	Live   Live         `toml:"live"`
	Build  pool.Options `toml:"build"`
	Tiling Tiling       `toml:"tiling"`
	Log    Log          `toml:"log"`
}

// Live sets the interactive update rates.
type Live struct {
	PreviewHz float64 `toml:"preview_hz"`
	RebuildMS int     `toml:"rebuild_ms"`
}

// Tiling sets the texture tile size applied to every surface.
type Tiling struct {
	TileSize float64 `toml:"tile_size"`
}

// Log holds the slog level name: debug, info, warn or error.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the stock configuration.
func Default() *Config {
	d := live.DefaultOptions()
	return &Config{
		Live: Live{
			PreviewHz: float64(time.Second) / float64(d.PreviewInterval),
			RebuildMS: int(d.RebuildDelay / time.Millisecond),
		},
		Build:  pool.DefaultOptions(),
		Tiling: Tiling{TileSize: uv.DefaultTileSize},
		Log:    Log{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logging.Logger().Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("config: %w", err)
		default:
			if err := toml.Unmarshal(data, c); err != nil {
				var derr *toml.DecodeError
				if errors.As(err, &derr) {
					row, col := derr.Position()
					return nil, fmt.Errorf("config: %s:%d:%d: %w", path, row, col, err)
				}
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}
	c.applyEnv()
	return c, nil
}

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

func (c *Config) applyEnv() {
	c.Live.PreviewHz = getEnvAsFloat(EnvPreviewHz, c.Live.PreviewHz)
	c.Live.RebuildMS = getEnvAsInt(EnvRebuildMS, c.Live.RebuildMS)
	c.Log.Level = getEnv(EnvLogLevel, c.Log.Level)
}

// BuildOptions returns the builder constants with the tiling section
// folded in.
func (c *Config) BuildOptions() pool.Options {
	o := c.Build
	o.TileSize = c.Tiling.TileSize
	return o
}

// LiveOptions converts the rates into scheduler options. Non-positive
// values fall back to the scheduler defaults.
func (c *Config) LiveOptions() live.Options {
	o := live.DefaultOptions()
	if c.Live.PreviewHz > 0 {
		o.PreviewInterval = time.Duration(float64(time.Second) / c.Live.PreviewHz)
	}
	if c.Live.RebuildMS > 0 {
		o.RebuildDelay = time.Duration(c.Live.RebuildMS) * time.Millisecond
	}
	return o
}

// LogLevel parses the configured level.
func (c *Config) LogLevel() slog.Level {
	return logging.ParseLevel(c.Log.Level)
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
