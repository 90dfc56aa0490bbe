// Package app wires the tracker station, storage backends, background
// controllers, and query surface together and manages their lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/balasaravanank/PhotonIQ/internal/controllers"
	"github.com/balasaravanank/PhotonIQ/internal/controllers/forecast"
	"github.com/balasaravanank/PhotonIQ/internal/controllers/openweather"
	"github.com/balasaravanank/PhotonIQ/internal/controllers/restserver"
	"github.com/balasaravanank/PhotonIQ/internal/device"
	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/internal/scheduler"
	"github.com/balasaravanank/PhotonIQ/internal/state"
	"github.com/balasaravanank/PhotonIQ/internal/storage"
	"github.com/balasaravanank/PhotonIQ/internal/storage/memory"
	"github.com/balasaravanank/PhotonIQ/internal/storage/sqlite"
	"github.com/balasaravanank/PhotonIQ/internal/storage/timescaledb"
	"github.com/balasaravanank/PhotonIQ/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.Config, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	telemetry := state.New()

	history, err := a.setupStorage(ctx, &wg)
	if err != nil {
		return err
	}

	station, err := device.NewStation(ctx, &wg, a.cfg.Device, telemetry, history, a.logger)
	if err != nil {
		return err
	}
	if err := station.StartStation(); err != nil {
		return err
	}

	sched := scheduler.New()

	if a.cfg.Weather.APIKey != "" {
		weatherController, err := openweather.NewController(ctx, &wg, a.cfg.Weather, telemetry, sched, a.logger)
		if err != nil {
			return err
		}
		if err := weatherController.StartController(); err != nil {
			return err
		}
	} else {
		log.Info("weather.api-key not set; weather refresh disabled")
	}

	forecastController, err := forecast.NewController(ctx, &wg, a.cfg.Forecast, telemetry, sched, a.logger)
	if err != nil {
		return err
	}
	if err := forecastController.StartController(); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	rest, err := restserver.NewController(ctx, &wg, a.cfg.HTTP, telemetry, history, station, a.logger)
	if err != nil {
		return err
	}

	cm := &controllers.Manager{}
	cm.Add("restserver", rest)
	if err := cm.StartControllers(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// setupStorage builds the history manager with every configured backend.
// The in-memory ring buffer is always attached so the query surface works
// without any external storage.
func (a *App) setupStorage(ctx context.Context, wg *sync.WaitGroup) (*storage.Manager, error) {
	manager := storage.NewManager(ctx, wg)

	manager.AddEngine(ctx, wg, "memory", memory.New(a.cfg.Storage.MaxHistory))

	if a.cfg.Storage.SQLite.Path != "" {
		engine, err := sqlite.New(ctx, a.cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("could not set up SQLite storage: %v", err)
		}
		manager.AddEngine(ctx, wg, "sqlite", engine)
	}

	if a.cfg.Storage.TimescaleDB.ConnectionString != "" {
		engine, err := timescaledb.New(ctx, a.cfg.Storage.TimescaleDB.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("could not set up TimescaleDB storage: %v", err)
		}
		manager.AddEngine(ctx, wg, "timescaledb", engine)
	}

	return manager, nil
}
