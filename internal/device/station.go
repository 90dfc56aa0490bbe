// Package device owns the connection to the tracker and the ingestion
// loop that turns its line protocol into state updates and history appends.
package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/internal/state"
	"github.com/balasaravanank/PhotonIQ/internal/storage"
	"github.com/balasaravanank/PhotonIQ/internal/telemetry"
	"github.com/balasaravanank/PhotonIQ/pkg/config"
	"github.com/google/uuid"
	serial "github.com/tarm/goserial"
	"go.uber.org/zap"
)

const networkReadDeadline = 30 * time.Second

// Status is a point-in-time view of the ingestion loop's health.
type Status struct {
	Connected     bool      `json:"connected"`
	SessionID     string    `json:"sessionId,omitempty"`
	LastReadingAt time.Time `json:"lastReadingAt,omitempty"`
	LinesAccepted uint64    `json:"linesAccepted"`
	LinesRejected uint64    `json:"linesRejected"`
}

// Station holds the tracker connection along with some mutexes for operation.
type Station struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	netConn      net.Conn
	rwc          io.ReadWriteCloser
	config       config.DeviceConfig
	telemetry    *state.State
	history      *storage.Manager
	logger       *zap.SugaredLogger
	connecting   bool
	connectingMu sync.RWMutex

	statusMu sync.RWMutex
	status   Status
}

// NewStation creates a new tracker station for the configured device.
func NewStation(ctx context.Context, wg *sync.WaitGroup, c config.DeviceConfig, telemetry *state.State, history *storage.Manager, logger *zap.SugaredLogger) (*Station, error) {
	s := &Station{
		ctx:       ctx,
		wg:        wg,
		config:    c,
		telemetry: telemetry,
		history:   history,
		logger:    logger,
	}

	if c.SerialDevice == "" && (c.Hostname == "" || c.Port == "") {
		return nil, fmt.Errorf("device [%s]: must define either a serial device or hostname+port", c.Name)
	}

	if c.SerialDevice != "" {
		log.Info("Configuring tracker via serial port...")
	} else {
		log.Info("Configuring tracker via TCP/IP")
	}

	if s.config.Baud == 0 {
		s.config.Baud = config.DefaultBaud
	}

	return s, nil
}

// StationName returns the configured device name.
func (s *Station) StationName() string {
	return s.config.Name
}

// Status returns a copy of the ingestion health counters.
func (s *Station) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// StartStation connects to the tracker and launches the line-reading goroutine.
func (s *Station) StartStation() error {
	log.Infof("Starting tracker station [%v]...", s.config.Name)

	s.Connect()

	s.wg.Add(1)
	go s.readLoop()

	return nil
}

// readLoop runs the line consumer, reconnecting whenever the stream ends
// with an error.  Ingestion never halts because of bad input; only
// cancellation stops it.
func (s *Station) readLoop() {
	defer s.wg.Done()
	log.Info("starting tracker line reader")

	// Close the connection when shutdown begins so a Scan blocked on a
	// silent device returns immediately.  The read error it surfaces is
	// part of the clean exit, not a reconnect trigger.
	go func() {
		<-s.ctx.Done()
		s.closeConn()
	}()

	for {
		err := s.consumeLines(s.rwc)
		if err == nil || s.ctx.Err() != nil {
			log.Info("cancellation request received. Cancelling tracker line reader.")
			s.closeConn()
			s.setConnected(false, "")
			return
		}
		s.logger.Error(err)
		s.closeConn()
		s.setConnected(false, "")
		s.logger.Info("attempting to reconnect...")
		s.Connect()
		if s.ctx.Err() != nil {
			s.closeConn()
			return
		}
	}
}

// consumeLines scans newline-delimited telemetry off the connection until
// the stream ends or the context is cancelled.  Every accepted reading
// replaces the latest state and is offered to the history sink without
// waiting on it.
func (s *Station) consumeLines(rwc io.Reader) error {
	if rwc == nil {
		return errors.New("no device connection")
	}

	scanner := bufio.NewScanner(rwc)

	for scanner.Scan() {
		// Push the read deadline forward on network connections so an
		// idle device eventually surfaces as a stream error.
		if s.netConn != nil {
			s.netConn.SetReadDeadline(time.Now().Add(networkReadDeadline))
		}

		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received. Cancelling tracker line reader.")
			return nil
		default:
			s.handleLine(scanner.Bytes())
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("device stream error: %v", err)
	}
	return errors.New("device stream closed (EOF)")
}

// handleLine runs one line through the parser and applies the verdict.
func (s *Station) handleLine(line []byte) {
	r, err := telemetry.Parse(line)
	if err != nil {
		s.bumpRejected()

		var pe *telemetry.ParseError
		if errors.As(err, &pe) {
			switch pe.Kind {
			case telemetry.DeviceMessage:
				log.Infof("tracker [%s] message: %s", s.config.Name, pe.Message)
			case telemetry.MissingField:
				log.Warnf("tracker [%s] dropped line: %v", s.config.Name, pe)
			default:
				// Boot banners and line noise are routine; keep them out
				// of the production log stream.
				log.Debugf("tracker [%s] skipped %s line", s.config.Name, pe.Kind)
			}
			return
		}
		log.Warnf("tracker [%s] dropped line: %v", s.config.Name, err)
		return
	}

	s.telemetry.ReplaceReading(r)
	s.history.Submit(r)
	s.bumpAccepted(r.Timestamp)
}

// Connect connects to the tracker over serial or network.
func (s *Station) Connect() {
	if len(s.config.SerialDevice) > 0 {
		s.connectToSerialStation()
	} else {
		s.connectToNetworkStation()
	}
}

// connectToSerialStation connects to the tracker over a serial port,
// retrying until it succeeds or the context is cancelled.
func (s *Station) connectToSerialStation() {
	var err error

	s.connectingMu.RLock()
	if s.connecting {
		s.connectingMu.RUnlock()
		s.logger.Info("skipping reconnect since a connection attempt is already in progress")
		return
	}

	// A connection attempt is not in progress so we'll start a new one
	s.connectingMu.RUnlock()
	s.connectingMu.Lock()
	s.connecting = true
	s.connectingMu.Unlock()

	s.logger.Infof("connecting to %v ...", s.config.SerialDevice)

	for {
		sc := &serial.Config{Name: s.config.SerialDevice, Baud: s.config.Baud}
		s.rwc, err = serial.OpenPort(sc)

		if err != nil {
			s.logger.Errorf("failed to open serial port %s: %v", s.config.SerialDevice, err)
			s.logger.Error("sleeping 30 seconds and trying again")

			select {
			case <-s.ctx.Done():
				s.logger.Info("cancellation request received during retry wait")
				s.connectingMu.Lock()
				s.connecting = false
				s.connectingMu.Unlock()
				return
			case <-time.After(30 * time.Second):
			}
		} else {
			s.finishConnect()
			return
		}
	}
}

// connectToNetworkStation connects to the tracker over TCP/IP, retrying
// until it succeeds or the context is cancelled.
func (s *Station) connectToNetworkStation() {
	var err error

	console := fmt.Sprint(s.config.Hostname, ":", s.config.Port)

	s.connectingMu.RLock()
	if s.connecting {
		s.connectingMu.RUnlock()
		log.Info("skipping reconnect since a connection attempt is already in progress")
		return
	}

	// A connection attempt is not in progress so we'll start a new one
	s.connectingMu.RUnlock()
	s.connectingMu.Lock()
	s.connecting = true
	s.connectingMu.Unlock()

	log.Info("connecting to:", console)

	for {
		s.netConn, err = net.DialTimeout("tcp", console, 10*time.Second)

		if err != nil {
			log.Errorf("could not connect to %v: %v", console, err)
			log.Error("sleeping 5 seconds and trying again.")

			select {
			case <-s.ctx.Done():
				s.logger.Info("cancellation request received during retry wait")
				s.connectingMu.Lock()
				s.connecting = false
				s.connectingMu.Unlock()
				return
			case <-time.After(5 * time.Second):
			}
		} else {
			s.netConn.SetReadDeadline(time.Now().Add(networkReadDeadline))
			s.rwc = io.ReadWriteCloser(s.netConn)
			s.finishConnect()
			return
		}
	}
}

// finishConnect clears the connecting flag and starts a fresh session.
func (s *Station) finishConnect() {
	s.connectingMu.Lock()
	s.connecting = false
	s.connectingMu.Unlock()

	session := uuid.New().String()
	s.setConnected(true, session)
	s.logger.Infof("tracker [%s] connected, session %s", s.config.Name, session)
}

func (s *Station) closeConn() {
	if s.rwc != nil {
		s.rwc.Close()
	}
	if s.netConn != nil {
		s.netConn.Close()
	}
}

func (s *Station) setConnected(connected bool, sessionID string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Connected = connected
	s.status.SessionID = sessionID
}

func (s *Station) bumpAccepted(ts time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LinesAccepted++
	s.status.LastReadingAt = ts
}

func (s *Station) bumpRejected() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LinesRejected++
}
