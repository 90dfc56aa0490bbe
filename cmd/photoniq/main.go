// Command photoniq runs the solar tracker telemetry server: it ingests
// line-protocol readings from the tracker, keeps the latest state in
// memory, records history, refreshes weather, recomputes the forecast,
// and serves the read-only HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/balasaravanank/PhotonIQ/internal/app"
	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/pkg/config"
	"github.com/joho/godotenv"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("photoniq %s\n", version)
		os.Exit(0)
	}

	// A .env file is optional; the environment wins over the YAML file
	// either way.
	_ = godotenv.Load()

	filename, _ := filepath.Abs(*cfgFile)
	cfg, err := config.NewConfig(filename)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(*debug, cfg.LogFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	application := app.New(&cfg, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}
