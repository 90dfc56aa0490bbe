// Package types contains the data types shared between the ingestion
// pipeline, the background controllers, and the query surface.
package types

import (
	"encoding/json"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Reading is a single telemetry sample from the tracker.  Readings are
// immutable once constructed: the ingestion loop builds a new Reading for
// every accepted line and replaces the previous latest wholesale.
type Reading struct {
	Timestamp       time.Time `json:"-" gorm:"column:time"`
	VoltageV        float64   `json:"voltage" gorm:"column:voltage"`
	CurrentMA       float64   `json:"current" gorm:"column:current"`
	PowerW          float64   `json:"power" gorm:"column:power"`
	AngleHorizontal int       `json:"angleH" gorm:"column:angle_h"`
	AngleVertical   int       `json:"angleV" gorm:"column:angle_v"`
	LightPercent    int       `json:"light" gorm:"column:light"`
	DustAlert       bool      `json:"dustAlert" gorm:"column:dust_alert"`
	DustRaw         int       `json:"dustRaw" gorm:"column:dust_raw"`
}

// readingJSON mirrors Reading on the query surface, where the timestamp
// travels as milliseconds since epoch under "ts".  Both wire formats
// encode through this mirror so they carry identical keys.
type readingJSON struct {
	Timestamp       int64   `json:"ts" msgpack:"ts"`
	VoltageV        float64 `json:"voltage" msgpack:"voltage"`
	CurrentMA       float64 `json:"current" msgpack:"current"`
	PowerW          float64 `json:"power" msgpack:"power"`
	AngleHorizontal int     `json:"angleH" msgpack:"angleH"`
	AngleVertical   int     `json:"angleV" msgpack:"angleV"`
	LightPercent    int     `json:"light" msgpack:"light"`
	DustAlert       bool    `json:"dustAlert" msgpack:"dustAlert"`
	DustRaw         int     `json:"dustRaw" msgpack:"dustRaw"`
}

func (r Reading) wire() readingJSON {
	return readingJSON{
		Timestamp:       r.Timestamp.UnixMilli(),
		VoltageV:        r.VoltageV,
		CurrentMA:       r.CurrentMA,
		PowerW:          r.PowerW,
		AngleHorizontal: r.AngleHorizontal,
		AngleVertical:   r.AngleVertical,
		LightPercent:    r.LightPercent,
		DustAlert:       r.DustAlert,
		DustRaw:         r.DustRaw,
	}
}

func (rj readingJSON) reading() Reading {
	return Reading{
		Timestamp:       time.UnixMilli(rj.Timestamp),
		VoltageV:        rj.VoltageV,
		CurrentMA:       rj.CurrentMA,
		PowerW:          rj.PowerW,
		AngleHorizontal: rj.AngleHorizontal,
		AngleVertical:   rj.AngleVertical,
		LightPercent:    rj.LightPercent,
		DustAlert:       rj.DustAlert,
		DustRaw:         rj.DustRaw,
	}
}

// MarshalJSON encodes the reading with its timestamp as epoch milliseconds.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var rj readingJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	*r = rj.reading()
	return nil
}

// EncodeMsgpack encodes the reading through the same mirror as
// MarshalJSON, keeping the timestamp key in the MessagePack body.
func (r Reading) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(r.wire())
}

// DecodeMsgpack is the inverse of EncodeMsgpack.
func (r *Reading) DecodeMsgpack(dec *msgpack.Decoder) error {
	var rj readingJSON
	if err := dec.Decode(&rj); err != nil {
		return err
	}
	*r = rj.reading()
	return nil
}

// WeatherSnapshot holds the most recent conditions fetched from the external
// weather API.  A failed fetch never produces a snapshot; the previous one
// stays in place.
type WeatherSnapshot struct {
	TempC           float64   `json:"temp"`
	HumidityPercent float64   `json:"humidity"`
	CloudPercent    float64   `json:"clouds"`
	Condition       string    `json:"condition"`
	WindSpeedMS     float64   `json:"windSpeed"`
	FetchedAt       time.Time `json:"fetchedAt"`
}

// ForecastHour is one hour of the forecast curve.
type ForecastHour struct {
	Hour            int     `json:"hour"`
	Label           string  `json:"label"`
	PredictedPowerW float64 `json:"predictedPower"`
}

// Forecast is the short-horizon power prediction.  Recomputation always
// replaces the whole value.
type Forecast struct {
	NextHourPowerW    float64        `json:"predicted_power"`
	ConfidencePercent int            `json:"confidence"`
	PeakHour          int            `json:"peak_hour"`
	Hours             []ForecastHour `json:"hours"`
	ComputedAt        time.Time      `json:"computedAt"`
}

// DashboardSnapshot is the composite view returned by /dashboard.  Slots
// that have not been populated yet are nil.
type DashboardSnapshot struct {
	Live     *Reading         `json:"live"`
	Weather  *WeatherSnapshot `json:"weather"`
	Forecast *Forecast        `json:"prediction"`
}
