package openweather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/scheduler"
	"github.com/balasaravanank/PhotonIQ/internal/state"
	"github.com/balasaravanank/PhotonIQ/pkg/config"
	"go.uber.org/zap"
)

const sampleResponse = `{
	"weather": [{"description": "scattered clouds"}],
	"main": {"temp": 21.5, "humidity": 64},
	"wind": {"speed": 3.2},
	"clouds": {"all": 40}
}`

func newTestController(t *testing.T, endpoint string) (*Controller, *state.State) {
	t.Helper()

	telemetry := state.New()
	c, err := NewController(context.Background(), &sync.WaitGroup{}, config.WeatherConfig{
		APIKey:      "test-key",
		Location:    "Chennai,IN",
		APIEndpoint: endpoint,
		Interval:    10 * time.Minute,
	}, telemetry, scheduler.New(), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c, telemetry
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	var gotQuery struct {
		location string
		units    string
		key      string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.location = r.URL.Query().Get("q")
		gotQuery.units = r.URL.Query().Get("units")
		gotQuery.key = r.URL.Query().Get("appid")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c, telemetry := newTestController(t, srv.URL)
	c.Refresh()

	if gotQuery.location != "Chennai,IN" {
		t.Errorf("expected location query Chennai,IN, got %q", gotQuery.location)
	}
	if gotQuery.units != "metric" {
		t.Errorf("expected metric units, got %q", gotQuery.units)
	}
	if gotQuery.key != "test-key" {
		t.Errorf("expected api key in query, got %q", gotQuery.key)
	}

	snap, ok := telemetry.LatestWeather()
	if !ok {
		t.Fatal("expected a weather snapshot after a successful refresh")
	}
	if snap.TempC != 21.5 {
		t.Errorf("expected temp 21.5, got %v", snap.TempC)
	}
	if snap.HumidityPercent != 64 {
		t.Errorf("expected humidity 64, got %v", snap.HumidityPercent)
	}
	if snap.CloudPercent != 40 {
		t.Errorf("expected cloud cover 40, got %v", snap.CloudPercent)
	}
	if snap.WindSpeedMS != 3.2 {
		t.Errorf("expected wind speed 3.2, got %v", snap.WindSpeedMS)
	}
	if snap.Condition != "scattered clouds" {
		t.Errorf("expected condition %q, got %q", "scattered clouds", snap.Condition)
	}
	if snap.FetchedAt.IsZero() {
		t.Error("expected FetchedAt to be set")
	}
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(sampleResponse))
			return
		}
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, telemetry := newTestController(t, srv.URL)

	c.Refresh()
	first, ok := telemetry.LatestWeather()
	if !ok {
		t.Fatal("expected a snapshot after the first refresh")
	}

	c.Refresh()
	second, ok := telemetry.LatestWeather()
	if !ok {
		t.Fatal("expected the stale snapshot to remain after a failed refresh")
	}
	if !second.FetchedAt.Equal(first.FetchedAt) {
		t.Error("failed refresh must not replace the previous snapshot")
	}
}

func TestRefreshAgainstUnreachableEndpoint(t *testing.T) {
	c, telemetry := newTestController(t, "http://127.0.0.1:1")
	c.Refresh()
	if _, ok := telemetry.LatestWeather(); ok {
		t.Error("expected no snapshot when every fetch fails")
	}
}

func TestNewControllerValidation(t *testing.T) {
	telemetry := state.New()
	_, err := NewController(context.Background(), &sync.WaitGroup{}, config.WeatherConfig{
		Location: "Chennai,IN",
	}, telemetry, scheduler.New(), zap.NewNop().Sugar())
	if err == nil {
		t.Error("expected an error when the API key is missing")
	}

	_, err = NewController(context.Background(), &sync.WaitGroup{}, config.WeatherConfig{
		APIKey: "k",
	}, telemetry, scheduler.New(), zap.NewNop().Sugar())
	if err == nil {
		t.Error("expected an error when the location is missing")
	}
}
