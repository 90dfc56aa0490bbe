// Package openweather periodically fetches current conditions from the
// OpenWeatherMap API and publishes them as the weather slot of the shared
// telemetry state.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/scheduler"
	"github.com/balasaravanank/PhotonIQ/internal/state"
	"github.com/balasaravanank/PhotonIQ/internal/types"
	"github.com/balasaravanank/PhotonIQ/pkg/config"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultAPIEndpoint = "https://api.openweathermap.org/data/2.5/weather"

// fetchTimeout bounds one API call; a hung fetch is a failed fetch.
const fetchTimeout = 5 * time.Second

// Controller holds our OpenWeatherMap configuration.
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	cfg       config.WeatherConfig
	telemetry *state.State
	sched     *scheduler.Scheduler
	client    *http.Client
	circuit   *gobreaker.CircuitBreaker
	logger    *zap.SugaredLogger
}

// currentConditionsResponse is the subset of the OpenWeatherMap current
// weather payload this controller consumes.
type currentConditionsResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// NewController creates a new OpenWeatherMap controller.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg config.WeatherConfig, telemetry *state.State, sched *scheduler.Scheduler, logger *zap.SugaredLogger) (*Controller, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("weather: api-key must be set")
	}
	if cfg.Location == "" {
		return nil, fmt.Errorf("weather: location must be set")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = defaultAPIEndpoint
	}

	return &Controller{
		ctx:       ctx,
		wg:        wg,
		cfg:       cfg,
		telemetry: telemetry,
		sched:     sched,
		client:    &http.Client{Timeout: fetchTimeout},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweather",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		logger: logger,
	}, nil
}

// StartController registers the periodic refresh job.  The scheduler runs
// it once immediately and then on the configured interval, one flight at a
// time.
func (c *Controller) StartController() error {
	return c.sched.AddJob("weather-refresh", c.cfg.Interval, c.Refresh)
}

// Refresh performs one fetch cycle.  On success the snapshot replaces the
// weather slot; on any failure the previous snapshot stays in place and
// the next scheduled attempt supersedes this one.
func (c *Controller) Refresh() {
	snap, err := c.fetchCurrentConditions(c.ctx)
	if err != nil {
		c.logger.Errorf("weather refresh failed (keeping previous snapshot): %v", err)
		return
	}
	c.telemetry.ReplaceWeather(snap)
	c.logger.Debugf("weather refreshed: %.1f°C, %v%% clouds, %q", snap.TempC, snap.CloudPercent, snap.Condition)
}

func (c *Controller) fetchCurrentConditions(ctx context.Context) (types.WeatherSnapshot, error) {
	v := url.Values{}
	v.Set("q", c.cfg.Location)
	v.Set("appid", c.cfg.APIKey)
	v.Set("units", "metric")

	reqURL := fmt.Sprintf("%s?%s", c.cfg.APIEndpoint, v.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.WeatherSnapshot{}, fmt.Errorf("error creating weather API request: %v", err)
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("weather API returned status %s", resp.Status)
		}

		var payload currentConditionsResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("unable to decode weather API response: %v", err)
		}
		return &payload, nil
	})
	if err != nil {
		return types.WeatherSnapshot{}, err
	}

	payload := result.(*currentConditionsResponse)

	condition := ""
	if len(payload.Weather) > 0 {
		condition = payload.Weather[0].Description
	}

	return types.WeatherSnapshot{
		TempC:           payload.Main.Temp,
		HumidityPercent: payload.Main.Humidity,
		CloudPercent:    payload.Clouds.All,
		Condition:       condition,
		WindSpeedMS:     payload.Wind.Speed,
		FetchedAt:       time.Now(),
	}, nil
}
