// Package restserver exposes the read-only HTTP query surface over the
// shared telemetry state and the history store.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/device"
	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/internal/state"
	"github.com/balasaravanank/PhotonIQ/internal/storage"
	"github.com/balasaravanank/PhotonIQ/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DeviceStatusReporter is the slice of the tracker station the health
// endpoint reads.
type DeviceStatusReporter interface {
	Status() device.Status
}

// Controller represents the REST server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	httpCfg  config.HTTPConfig
	Server   http.Server
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, httpCfg config.HTTPConfig, telemetry *state.State, history *storage.Manager, station DeviceStatusReporter, logger *zap.SugaredLogger) (*Controller, error) {
	if telemetry == nil {
		return nil, fmt.Errorf("restserver: telemetry state must be provided")
	}

	ctrl := &Controller{
		ctx:     ctx,
		wg:      wg,
		httpCfg: httpCfg,
		logger:  logger,
	}
	ctrl.handlers = NewHandlers(telemetry, history, station, time.Now())

	if ctrl.httpCfg.ListenAddr == "" {
		ctrl.httpCfg.ListenAddr = "0.0.0.0"
	}
	if ctrl.httpCfg.Port == 0 {
		ctrl.httpCfg.Port = config.DefaultHTTPPort
	}

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.httpCfg.ListenAddr, ctrl.httpCfg.Port)
	ctrl.Server.Handler = ctrl.setupRouter()

	return ctrl, nil
}

// StartController starts the REST server.  Failure to bind the listen
// port is the one error that terminates the process.
func (c *Controller) StartController() error {
	c.logger.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Fatalf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/live", c.handlers.GetLive).Methods(http.MethodGet)
	router.HandleFunc("/weather", c.handlers.GetWeather).Methods(http.MethodGet)
	router.HandleFunc("/prediction", c.handlers.GetPrediction).Methods(http.MethodGet)
	router.HandleFunc("/history", c.handlers.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/dashboard", c.handlers.GetDashboard).Methods(http.MethodGet)
	router.HandleFunc("/health", c.handlers.GetHealth).Methods(http.MethodGet)

	accessLog := zap.NewStdLog(log.GetZapLogger()).Writer()
	return handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(accessLog, handlers.CompressHandler(router)))
}
