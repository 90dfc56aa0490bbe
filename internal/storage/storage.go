// Package storage fans accepted readings out to the configured history
// backends and answers recency queries against one of them.
package storage

import (
	"context"
	"sync"

	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/internal/types"
)

// Engine is a history backend.  StartStorageEngine launches the engine's
// consumer goroutine and returns the channel readings should be sent on.
type Engine interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- types.Reading
}

// Querier is implemented by engines that can answer history queries.
// Results are ordered by timestamp ascending and hold at most limit entries.
type Querier interface {
	GetRecentReadings(ctx context.Context, limit int) ([]types.Reading, error)
}

// Manager owns the reading distributor and the set of active engines.
type Manager struct {
	engines  []engineChan
	querier  Querier
	mu       sync.RWMutex
	incoming chan types.Reading
}

type engineChan struct {
	name string
	c    chan<- types.Reading
}

// NewManager creates a Manager and starts its distributor goroutine.
// Engines are added with AddEngine before ingestion begins.
func NewManager(ctx context.Context, wg *sync.WaitGroup) *Manager {
	m := &Manager{
		incoming: make(chan types.Reading, 20),
	}
	go m.startReadingDistributor(ctx, wg)
	return m
}

// AddEngine starts an engine and registers it for fan-out.  The first
// engine that implements Querier becomes the history querier.
func (m *Manager) AddEngine(ctx context.Context, wg *sync.WaitGroup, name string, e Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.engines = append(m.engines, engineChan{name: name, c: e.StartStorageEngine(ctx, wg)})
	if q, ok := e.(Querier); ok && m.querier == nil {
		m.querier = q
	}
	log.Infof("added %s history backend", name)
}

// ReadingDistributor returns the channel the ingestion loop appends to.
func (m *Manager) ReadingDistributor() chan<- types.Reading {
	return m.incoming
}

// Submit offers a reading to the distributor without blocking.  When the
// distributor is saturated the reading is dropped and logged; history
// persistence is best-effort and must never stall ingestion.
func (m *Manager) Submit(r types.Reading) {
	select {
	case m.incoming <- r:
	default:
		log.Warn("history distributor saturated; dropping reading")
	}
}

// GetRecentReadings returns up to limit of the most recent readings in
// ascending timestamp order from the active querier.
func (m *Manager) GetRecentReadings(ctx context.Context, limit int) ([]types.Reading, error) {
	m.mu.RLock()
	q := m.querier
	m.mu.RUnlock()

	if q == nil {
		return nil, nil
	}
	return q.GetRecentReadings(ctx, limit)
}

// startReadingDistributor receives readings from the ingestion loop and
// fans them out to the engines.  A slow engine loses readings rather than
// holding up the others.
func (m *Manager) startReadingDistributor(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case r := <-m.incoming:
			m.mu.RLock()
			for _, e := range m.engines {
				select {
				case e.c <- r:
				default:
					log.Warnf("%s history backend is not keeping up; dropping reading", e.name)
				}
			}
			m.mu.RUnlock()
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling reading distributor.")
			return
		}
	}
}
