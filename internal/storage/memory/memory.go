// Package memory implements an in-process history backend with a bounded
// ring of the most recent readings.  It is always enabled so the history
// endpoints work even when no database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/internal/types"
)

// Store keeps the most recent maxHistory readings in arrival order.
type Store struct {
	mu         sync.RWMutex
	readings   []types.Reading
	maxHistory int
}

// New creates a Store retaining at most maxHistory readings.
func New(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = 512
	}
	return &Store{maxHistory: maxHistory}
}

// StartStorageEngine creates a goroutine loop to receive readings and
// append them to the ring.
func (s *Store) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	log.Info("starting in-memory history backend...")
	readingChan := make(chan types.Reading, 10)
	go s.processReadings(ctx, wg, readingChan)
	return readingChan
}

func (s *Store) processReadings(ctx context.Context, wg *sync.WaitGroup, rchan <-chan types.Reading) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case r := <-rchan:
			s.StoreReading(r)
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling in-memory history backend.")
			return
		}
	}
}

// StoreReading appends a reading, evicting the oldest entries beyond the
// retention cap.
func (s *Store) StoreReading(r types.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = append(s.readings, r)
	if len(s.readings) > s.maxHistory {
		over := len(s.readings) - s.maxHistory
		s.readings = s.readings[over:]
	}
}

// GetRecentReadings returns up to limit of the most recent readings,
// oldest first.
func (s *Store) GetRecentReadings(_ context.Context, limit int) ([]types.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || len(s.readings) == 0 {
		return nil, nil
	}
	start := len(s.readings) - limit
	if start < 0 {
		start = 0
	}
	out := make([]types.Reading, len(s.readings)-start)
	copy(out, s.readings[start:])
	return out, nil
}
