package restserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/device"
	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/internal/state"
	"github.com/balasaravanank/PhotonIQ/internal/storage"
	"github.com/balasaravanank/PhotonIQ/internal/types"
	"github.com/balasaravanank/PhotonIQ/pkg/responseformat"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	telemetry *state.State
	history   *storage.Manager
	station   DeviceStatusReporter
	startedAt time.Time
	formatter *responseformat.Formatter
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status        string        `json:"status"`
	UptimeSeconds float64       `json:"uptimeSeconds"`
	Device        device.Status `json:"device"`
}

// NewHandlers creates a new handlers instance
func NewHandlers(telemetry *state.State, history *storage.Manager, station DeviceStatusReporter, startedAt time.Time) *Handlers {
	return &Handlers{
		telemetry: telemetry,
		history:   history,
		station:   station,
		startedAt: startedAt,
		formatter: responseformat.NewFormatter(),
	}
}

// GetLive returns the most recent reading.
func (h *Handlers) GetLive(w http.ResponseWriter, req *http.Request) {
	reading, ok := h.telemetry.LatestReading()
	if !ok {
		h.writeNoData(w, req)
		return
	}
	h.write(w, req, reading)
}

// GetWeather returns the most recent weather snapshot.
func (h *Handlers) GetWeather(w http.ResponseWriter, req *http.Request) {
	snap, ok := h.telemetry.LatestWeather()
	if !ok {
		h.writeNoData(w, req)
		return
	}
	h.write(w, req, snap)
}

// GetPrediction returns the most recent forecast.
func (h *Handlers) GetPrediction(w http.ResponseWriter, req *http.Request) {
	f, ok := h.telemetry.LatestForecast()
	if !ok {
		h.writeNoData(w, req)
		return
	}
	h.write(w, req, f)
}

// GetHistory returns the most recent readings in ascending timestamp
// order.  The limit query parameter defaults to 50 and is clamped to 500.
func (h *Handlers) GetHistory(w http.ResponseWriter, req *http.Request) {
	limit := defaultHistoryLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	readings, err := h.history.GetRecentReadings(req.Context(), limit)
	if err != nil {
		log.Errorf("history query failed: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "history unavailable")
		return
	}
	if readings == nil {
		readings = []types.Reading{}
	}
	h.write(w, req, readings)
}

// GetDashboard returns the composite live/weather/prediction view from a
// single state snapshot.  History is not included.
func (h *Handlers) GetDashboard(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, h.telemetry.Snapshot())
}

// GetHealth reports liveness, uptime, and device connectivity.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}
	if h.station != nil {
		resp.Device = h.station.Status()
	}
	h.write(w, req, resp)
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data); err != nil {
		log.Errorf("error writing response: %v", err)
	}
}

func (h *Handlers) writeNoData(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteError(w, req, http.StatusNotFound, "no data yet")
}
