package device

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/state"
	"github.com/balasaravanank/PhotonIQ/internal/storage"
	"github.com/balasaravanank/PhotonIQ/internal/storage/memory"
	"github.com/balasaravanank/PhotonIQ/internal/types"
	"github.com/balasaravanank/PhotonIQ/pkg/config"
	"go.uber.org/zap"
)

func newTestStation(t *testing.T, ctx context.Context, wg *sync.WaitGroup) (*Station, *state.State, *storage.Manager) {
	t.Helper()

	telemetryState := state.New()
	history := storage.NewManager(ctx, wg)
	history.AddEngine(ctx, wg, "memory", memory.New(64))

	s, err := NewStation(ctx, wg, config.DeviceConfig{
		Name:     "test-tracker",
		Hostname: "127.0.0.1",
		Port:     "0",
	}, telemetryState, history, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewStation failed: %v", err)
	}
	return s, telemetryState, history
}

func waitForHistory(t *testing.T, history *storage.Manager, want int) []types.Reading {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := history.GetRecentReadings(context.Background(), 10)
		if err != nil {
			t.Fatalf("GetRecentReadings failed: %v", err)
		}
		if len(got) == want {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d history entries, have %d", want, len(got))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Feed the documented mixed stream: a valid reading, line noise, a device
// status message, then a second valid reading.  The state must hold the
// second reading and history exactly the two valid ones in arrival order.
func TestIngestMixedStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	s, telemetryState, history := newTestStation(t, ctx, &wg)

	stream := strings.Join([]string{
		`{"voltage":5.0,"current":1000,"power":5.0,"angleH":90,"angleV":90,"light":50,"dustAlert":false,"dustRaw":700}`,
		`garbage`,
		`{"status":"ready"}`,
		`{"voltage":5.0,"current":1200,"power":6.0,"angleH":90,"angleV":90,"light":50,"dustAlert":false,"dustRaw":700}`,
	}, "\n") + "\n"

	err := s.consumeLines(strings.NewReader(stream))
	if err == nil {
		t.Fatal("expected stream-closed error at EOF")
	}

	live, ok := telemetryState.LatestReading()
	if !ok {
		t.Fatal("expected a live reading after ingestion")
	}
	if live.PowerW != 6.0 {
		t.Errorf("expected live power 6.0, got %v", live.PowerW)
	}

	got := waitForHistory(t, history, 2)
	if got[0].PowerW != 5.0 || got[1].PowerW != 6.0 {
		t.Errorf("history out of arrival order: %v, %v", got[0].PowerW, got[1].PowerW)
	}

	st := s.Status()
	if st.LinesAccepted != 2 {
		t.Errorf("expected 2 accepted lines, got %d", st.LinesAccepted)
	}
	if st.LinesRejected != 2 {
		t.Errorf("expected 2 rejected lines, got %d", st.LinesRejected)
	}
}

func TestBadLinesCauseNoStateMutation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	s, telemetryState, _ := newTestStation(t, ctx, &wg)

	s.handleLine([]byte("READY"))
	s.handleLine([]byte(`{"status":"booting"}`))
	s.handleLine([]byte(`{"voltage":5.0`))

	if _, ok := telemetryState.LatestReading(); ok {
		t.Error("rejected lines must not mutate telemetry state")
	}
	if st := s.Status(); st.LinesRejected != 3 || st.LinesAccepted != 0 {
		t.Errorf("unexpected counters: %+v", st)
	}
}

func TestOrderingPreserved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	s, telemetryState, history := newTestStation(t, ctx, &wg)

	var lines []string
	for i := 1; i <= 5; i++ {
		lines = append(lines, `{"voltage":5.0,"current":1000,"power":`+
			strings.Repeat("1", i)+`,"angleH":90,"angleV":90,"light":50,"dustAlert":false,"dustRaw":700}`)
	}
	s.consumeLines(strings.NewReader(strings.Join(lines, "\n") + "\n"))

	live, _ := telemetryState.LatestReading()
	if live.PowerW != 11111 {
		t.Errorf("expected latest power 11111, got %v", live.PowerW)
	}

	got := waitForHistory(t, history, 5)
	want := []float64{1, 11, 111, 1111, 11111}
	for i, r := range got {
		if r.PowerW != want[i] {
			t.Errorf("entry %d: expected power %v, got %v", i, want[i], r.PowerW)
		}
	}
}

func TestShutdownUnblocksIdleReadLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	s, _, _ := newTestStation(t, ctx, &wg)

	// A pipe with no traffic keeps the scanner blocked in Read, the same
	// as a silent device.
	client, server := net.Pipe()
	defer client.Close()
	s.rwc = server
	s.setConnected(true, "idle-session")

	s.wg.Add(1)
	go s.readLoop()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop still blocked 2s after cancellation; connection never closed")
	}

	if st := s.Status(); st.Connected || st.SessionID != "" {
		t.Errorf("expected disconnected status after shutdown, got %+v", st)
	}
}

func TestStationRequiresConnectionDetails(t *testing.T) {
	ctx := context.Background()
	var wg sync.WaitGroup
	_, err := NewStation(ctx, &wg, config.DeviceConfig{Name: "bare"},
		state.New(), storage.NewManager(ctx, &wg), zap.NewNop().Sugar())
	if err == nil {
		t.Fatal("expected error for config without serial device or hostname+port")
	}
}
