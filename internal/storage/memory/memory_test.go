package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/types"
)

func reading(power float64, ts time.Time) types.Reading {
	return types.Reading{Timestamp: ts, PowerW: power}
}

func TestEmptyStore(t *testing.T) {
	s := New(10)
	got, err := s.GetRecentReadings(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no readings, got %d", len(got))
	}
}

func TestLimitAndOrder(t *testing.T) {
	s := New(10)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.StoreReading(reading(float64(i), base.Add(time.Duration(i)*time.Second)))
	}

	got, err := s.GetRecentReadings(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(got))
	}
	// Most recent three, ascending by timestamp.
	for i, r := range got {
		if r.PowerW != float64(i+2) {
			t.Errorf("entry %d: expected power %v, got %v", i, float64(i+2), r.PowerW)
		}
		if i > 0 && got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("entries out of timestamp order at %d", i)
		}
	}
}

func TestLimitLargerThanStored(t *testing.T) {
	s := New(10)
	s.StoreReading(reading(1, time.Now()))
	got, _ := s.GetRecentReadings(context.Background(), 50)
	if len(got) != 1 {
		t.Errorf("expected 1 reading, got %d", len(got))
	}
}

func TestRetentionEviction(t *testing.T) {
	s := New(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.StoreReading(reading(float64(i), base.Add(time.Duration(i)*time.Second)))
	}

	got, _ := s.GetRecentReadings(context.Background(), 10)
	if len(got) != 3 {
		t.Fatalf("expected retention cap of 3, got %d", len(got))
	}
	if got[0].PowerW != 2 {
		t.Errorf("expected oldest surviving entry power 2, got %v", got[0].PowerW)
	}
}

func TestEngineChannelDelivery(t *testing.T) {
	s := New(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	c := s.StartStorageEngine(ctx, &wg)
	c <- reading(7, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := s.GetRecentReadings(context.Background(), 1)
		if len(got) == 1 {
			if got[0].PowerW != 7 {
				t.Errorf("expected power 7, got %v", got[0].PowerW)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("reading never arrived in store")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	wg.Wait()
}
