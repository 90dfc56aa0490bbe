// Package state holds the authoritative latest-telemetry aggregate shared
// by the ingestion loop, the background controllers, and the query surface.
package state

import (
	"sync"

	"github.com/balasaravanank/PhotonIQ/internal/types"
)

// State is the single shared mutable aggregate.  It has three independent
// slots: the latest device reading, the latest weather snapshot, and the
// latest forecast.  Each slot is replaced wholesale under the write lock,
// and reads return copies, so a caller can never observe a half-written
// value or mutate what the pipeline sees.  Cross-slot freshness is
// intentionally independent; the three slots update on unrelated schedules.
type State struct {
	mu       sync.RWMutex
	reading  *types.Reading
	weather  *types.WeatherSnapshot
	forecast *types.Forecast
}

// New returns a State with all slots unpopulated.
func New() *State {
	return &State{}
}

// ReplaceReading replaces the latest reading.
func (s *State) ReplaceReading(r types.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = &r
}

// ReplaceWeather replaces the latest weather snapshot.
func (s *State) ReplaceWeather(w types.WeatherSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weather = &w
}

// ReplaceForecast replaces the latest forecast.  The hourly entries are
// copied so the stored forecast never aliases the caller's slice.
func (s *State) ReplaceForecast(f types.Forecast) {
	f.Hours = append([]types.ForecastHour(nil), f.Hours...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecast = &f
}

// LatestReading returns a copy of the latest reading.  ok is false before
// the first reading has been ingested.
func (s *State) LatestReading() (types.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reading == nil {
		return types.Reading{}, false
	}
	return *s.reading, true
}

// LatestWeather returns a copy of the latest weather snapshot.
func (s *State) LatestWeather() (types.WeatherSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.weather == nil {
		return types.WeatherSnapshot{}, false
	}
	return *s.weather, true
}

// LatestForecast returns a copy of the latest forecast.
func (s *State) LatestForecast() (types.Forecast, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.forecast == nil {
		return types.Forecast{}, false
	}
	f := *s.forecast
	f.Hours = append([]types.ForecastHour(nil), f.Hours...)
	return f, true
}

// Snapshot returns a point-in-time copy of all three slots taken under one
// read lock.  Unpopulated slots come back nil.
func (s *State) Snapshot() types.DashboardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap types.DashboardSnapshot
	if s.reading != nil {
		r := *s.reading
		snap.Live = &r
	}
	if s.weather != nil {
		w := *s.weather
		snap.Weather = &w
	}
	if s.forecast != nil {
		f := *s.forecast
		f.Hours = append([]types.ForecastHour(nil), f.Hours...)
		snap.Forecast = &f
	}
	return snap
}
