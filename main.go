package main

import (
	"embed"
	"log"
	"log/slog"
	"os"

	"github.com/chazu/lagoon/pkg/config"
	"github.com/chazu/lagoon/pkg/logging"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

// envConfig names the config file; it defaults to lagoon.toml in the
// working directory.
const envConfig = "LAGOON_CONFIG"

func main() {
	path := os.Getenv(envConfig)
	if path == "" {
		path = "lagoon.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	app := NewApp(cfg)
	err = wails.Run(&options.App{
		Title:  "Lagoon",
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Fatalf("wails: %v", err)
	}
}
