package forecast

import (
	"context"
	"sync"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/scheduler"
	"github.com/balasaravanank/PhotonIQ/internal/state"
	"github.com/balasaravanank/PhotonIQ/internal/types"
	"github.com/balasaravanank/PhotonIQ/pkg/config"
	"go.uber.org/zap"
)

// Controller periodically recomputes the forecast slot from the current
// reading and weather slots.
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	cfg       config.ForecastConfig
	telemetry *state.State
	sched     *scheduler.Scheduler
	logger    *zap.SugaredLogger
}

// NewController creates a new forecast controller.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg config.ForecastConfig, telemetry *state.State, sched *scheduler.Scheduler, logger *zap.SugaredLogger) (*Controller, error) {
	return &Controller{
		ctx:       ctx,
		wg:        wg,
		cfg:       cfg,
		telemetry: telemetry,
		sched:     sched,
		logger:    logger,
	}, nil
}

// StartController registers the periodic recompute job.  The scheduler
// runs it once immediately and then on the configured interval.
func (c *Controller) StartController() error {
	return c.sched.AddJob("forecast-recompute", c.cfg.Interval, c.Recompute)
}

// Recompute replaces the forecast slot with a fresh computation.  The
// prior forecast is discarded wholesale.
func (c *Controller) Recompute() {
	var reading *types.Reading
	if r, ok := c.telemetry.LatestReading(); ok {
		reading = &r
	}
	var weather *types.WeatherSnapshot
	if w, ok := c.telemetry.LatestWeather(); ok {
		weather = &w
	}

	f := Compute(reading, weather, time.Now())
	c.telemetry.ReplaceForecast(f)
	c.logger.Debugf("forecast recomputed: next hour %.3f W, confidence %d%%", f.NextHourPowerW, f.ConfidencePercent)
}
