// Package controllers manages the background components that run beside
// the ingestion loop.  Controllers do not generate device readings; they
// enrich shared state on a schedule (weather, forecast) or expose it to
// clients (the REST server).
package controllers

import (
	"fmt"

	"github.com/balasaravanank/PhotonIQ/internal/log"
)

// Controller is an interface that provides standard methods for various
// controller backends.
type Controller interface {
	StartController() error
}

// Manager holds our active controller backends.
type Manager struct {
	controllers []named
}

type named struct {
	name string
	c    Controller
}

// Add registers a controller under a human-readable name.
func (m *Manager) Add(name string, c Controller) {
	m.controllers = append(m.controllers, named{name: name, c: c})
}

// StartControllers starts every registered controller, failing fast on the
// first one that cannot start.
func (m *Manager) StartControllers() error {
	for _, n := range m.controllers {
		log.Infof("Starting %s controller...", n.name)
		if err := n.c.StartController(); err != nil {
			return fmt.Errorf("error starting %s controller: %v", n.name, err)
		}
	}
	return nil
}
