// Package sqlite implements a history backend on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/internal/types"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	voltage REAL NOT NULL,
	current REAL NOT NULL,
	power REAL NOT NULL,
	angle_h INTEGER NOT NULL,
	angle_v INTEGER NOT NULL,
	light INTEGER NOT NULL,
	dust_alert INTEGER NOT NULL,
	dust_raw INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts);
`

// Storage holds the connection to the SQLite history database.
type Storage struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at dbPath.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create readings table: %w", err)
	}

	return &Storage{db: db}, nil
}

// StartStorageEngine creates a goroutine loop to receive readings and
// write them to SQLite.
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	log.Info("starting SQLite history backend...")
	readingChan := make(chan types.Reading, 10)
	go s.processReadings(ctx, wg, readingChan)
	return readingChan
}

func (s *Storage) processReadings(ctx context.Context, wg *sync.WaitGroup, rchan <-chan types.Reading) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case r := <-rchan:
			if err := s.StoreReading(ctx, r); err != nil {
				log.Error("could not store reading:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling SQLite history backend.")
			s.db.Close()
			return
		}
	}
}

// StoreReading appends one reading.
func (s *Storage) StoreReading(ctx context.Context, r types.Reading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (ts, voltage, current, power, angle_h, angle_v, light, dust_alert, dust_raw)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UnixMilli(), r.VoltageV, r.CurrentMA, r.PowerW,
		r.AngleHorizontal, r.AngleVertical, r.LightPercent,
		boolToInt(r.DustAlert), r.DustRaw)
	return err
}

// GetRecentReadings returns up to limit of the most recent readings in
// ascending timestamp order.
func (s *Storage) GetRecentReadings(ctx context.Context, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, voltage, current, power, angle_h, angle_v, light, dust_alert, dust_raw
		 FROM readings ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying readings: %w", err)
	}
	defer rows.Close()

	var out []types.Reading
	for rows.Next() {
		var r types.Reading
		var ts int64
		var dustAlert int
		if err := rows.Scan(&ts, &r.VoltageV, &r.CurrentMA, &r.PowerW,
			&r.AngleHorizontal, &r.AngleVertical, &r.LightPercent,
			&dustAlert, &r.DustRaw); err != nil {
			return nil, fmt.Errorf("error scanning reading row: %w", err)
		}
		r.Timestamp = time.UnixMilli(ts)
		r.DustAlert = dustAlert != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query walks newest-first; the API contract is oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
