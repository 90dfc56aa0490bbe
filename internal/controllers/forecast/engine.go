// Package forecast computes short-horizon solar output predictions from
// the most recent panel reading and weather snapshot.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/types"
)

// irradianceShape is a fixed hour-of-day proxy for diurnal solar
// availability.  Values are relative to solar noon (index 12), zero
// outside roughly 06:00 to 18:00.
var irradianceShape = [24]float64{
	0, 0, 0, 0, 0, 0, // 00:00 - 05:00
	0.05, 0.15, 0.30, 0.50, 0.70, 0.88, // 06:00 - 11:00
	1.00, 0.95, 0.82, 0.62, 0.40, 0.20, // 12:00 - 17:00
	0.07, 0, 0, 0, 0, 0, // 18:00 - 23:00
}

// cloudAttenuation is how much of the output a fully overcast sky removes.
const cloudAttenuation = 0.7

// trackerBoost accounts for the panel tracking the sun across the
// multi-hour horizon instead of sitting at a fixed tilt.
const trackerBoost = 1.1

// horizonHours is how many hour-by-hour entries each forecast carries.
const horizonHours = 6

// Compute derives a Forecast from the latest reading and weather
// snapshot.  Either input may be nil: a missing reading forecasts from
// zero base power, a missing snapshot assumes a clear sky.  The result is
// deterministic for a given (reading, weather, now) triple.
func Compute(reading *types.Reading, weather *types.WeatherSnapshot, now time.Time) types.Forecast {
	basePower := 0.0
	if reading != nil {
		basePower = reading.PowerW
	}

	clouds := 0.0
	if weather != nil {
		clouds = weather.CloudPercent
	}
	cloudFactor := 1.0 - (clouds/100.0)*cloudAttenuation

	currentHour := now.Hour()

	hours := make([]types.ForecastHour, 0, horizonHours)
	for i := 1; i <= horizonHours; i++ {
		h := (currentHour + i) % 24
		predicted := basePower * irradianceShape[h] * cloudFactor * trackerBoost
		hours = append(hours, types.ForecastHour{
			Hour:            h,
			Label:           hourLabel(h),
			PredictedPowerW: roundMilli(clampNonNegative(predicted)),
		})
	}

	// The headline next-hour value carries no tracker boost.
	nextHour := (currentHour + 1) % 24
	headline := basePower * irradianceShape[nextHour] * cloudFactor

	return types.Forecast{
		NextHourPowerW:    roundMilli(clampNonNegative(headline)),
		ConfidencePercent: int(math.Round(cloudFactor * 90)),
		PeakHour:          12,
		Hours:             hours,
		ComputedAt:        now,
	}
}

func hourLabel(h int) string {
	switch {
	case h == 0:
		return "12 AM"
	case h < 12:
		return fmt.Sprintf("%d AM", h)
	case h == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", h-12)
	}
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// roundMilli rounds to milliwatt precision.
func roundMilli(v float64) float64 {
	return math.Round(v*1000) / 1000
}
