package state

import (
	"sync"
	"testing"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/types"
)

func sampleReading(power float64) types.Reading {
	return types.Reading{
		Timestamp:       time.Now(),
		VoltageV:        5.0,
		CurrentMA:       1000,
		PowerW:          power,
		AngleHorizontal: 90,
		AngleVertical:   90,
		LightPercent:    50,
		DustRaw:         700,
	}
}

func TestEmptyState(t *testing.T) {
	s := New()

	if _, ok := s.LatestReading(); ok {
		t.Error("expected no reading in fresh state")
	}
	if _, ok := s.LatestWeather(); ok {
		t.Error("expected no weather in fresh state")
	}
	if _, ok := s.LatestForecast(); ok {
		t.Error("expected no forecast in fresh state")
	}

	snap := s.Snapshot()
	if snap.Live != nil || snap.Weather != nil || snap.Forecast != nil {
		t.Error("expected all snapshot slots nil in fresh state")
	}
}

func TestReplaceReadingRoundTrip(t *testing.T) {
	s := New()
	r := sampleReading(5.0)

	s.ReplaceReading(r)

	got, ok := s.LatestReading()
	if !ok {
		t.Fatal("expected a reading after replace")
	}
	if got != r {
		t.Errorf("round trip mismatch: expected %+v, got %+v", r, got)
	}

	snap := s.Snapshot()
	if snap.Live == nil || *snap.Live != r {
		t.Errorf("snapshot mismatch: expected %+v, got %+v", r, snap.Live)
	}
}

func TestReplacementWins(t *testing.T) {
	s := New()
	s.ReplaceReading(sampleReading(5.0))
	s.ReplaceReading(sampleReading(6.0))

	got, _ := s.LatestReading()
	if got.PowerW != 6.0 {
		t.Errorf("expected latest power 6.0, got %v", got.PowerW)
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	s := New()
	s.ReplaceWeather(types.WeatherSnapshot{TempC: 21.5, CloudPercent: 40, Condition: "scattered clouds", FetchedAt: time.Now()})

	if _, ok := s.LatestReading(); ok {
		t.Error("reading slot should remain empty")
	}
	w, ok := s.LatestWeather()
	if !ok || w.TempC != 21.5 {
		t.Errorf("expected weather temp 21.5, got %+v ok=%v", w, ok)
	}
}

// N concurrent writers to the same slot must leave exactly one of the N
// written values, never a blend.
func TestConcurrentReplaceNoTearing(t *testing.T) {
	s := New()
	const writers = 32

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Every field derives from n so a torn write is detectable.
			s.ReplaceReading(types.Reading{
				VoltageV:        float64(n),
				CurrentMA:       float64(n) * 10,
				PowerW:          float64(n) * 100,
				AngleHorizontal: n,
				AngleVertical:   n,
				LightPercent:    n,
				DustRaw:         n,
			})
		}(i)
	}
	wg.Wait()

	got, ok := s.LatestReading()
	if !ok {
		t.Fatal("expected a reading after concurrent writes")
	}
	n := int(got.VoltageV)
	if n < 0 || n >= writers {
		t.Fatalf("winner index out of range: %v", n)
	}
	if got.CurrentMA != float64(n)*10 || got.PowerW != float64(n)*100 ||
		got.AngleHorizontal != n || got.AngleVertical != n ||
		got.LightPercent != n || got.DustRaw != n {
		t.Errorf("torn value observed: %+v", got)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := New()
	s.ReplaceReading(sampleReading(1.0))

	done := make(chan struct{})
	writerStopped := make(chan struct{})
	go func() {
		defer close(writerStopped)
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
				s.ReplaceReading(sampleReading(float64(i)))
				s.ReplaceForecast(types.Forecast{NextHourPowerW: float64(i)})
			}
		}
	}()

	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for j := 0; j < 1000; j++ {
				s.Snapshot()
				s.LatestReading()
				s.LatestForecast()
			}
		}()
	}

	readers.Wait()
	close(done)
	<-writerStopped
}

// Mutating a returned forecast's hours must not leak back into the state.
func TestForecastCopyIsolation(t *testing.T) {
	s := New()
	s.ReplaceForecast(types.Forecast{
		NextHourPowerW: 10,
		Hours: []types.ForecastHour{
			{Hour: 12, Label: "12 PM", PredictedPowerW: 11},
		},
	})

	f, _ := s.LatestForecast()
	f.Hours[0].PredictedPowerW = -999

	again, _ := s.LatestForecast()
	if again.Hours[0].PredictedPowerW != 11 {
		t.Errorf("state forecast mutated through returned copy: %+v", again.Hours[0])
	}
}

func TestReplaceForecastCopiesHours(t *testing.T) {
	s := New()
	hours := []types.ForecastHour{
		{Hour: 12, Label: "12 PM", PredictedPowerW: 11},
	}
	s.ReplaceForecast(types.Forecast{NextHourPowerW: 10, Hours: hours})

	// Mutating the caller's slice after the replace must not reach the
	// stored forecast.
	hours[0].PredictedPowerW = -999

	f, _ := s.LatestForecast()
	if f.Hours[0].PredictedPowerW != 11 {
		t.Errorf("stored forecast aliases the caller's hours slice: %+v", f.Hours[0])
	}
}
