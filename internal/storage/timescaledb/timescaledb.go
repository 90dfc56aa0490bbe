// Package timescaledb implements a history backend on TimescaleDB (or
// plain PostgreSQL) through GORM.
package timescaledb

import (
	"context"
	"sync"
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/balasaravanank/PhotonIQ/internal/types"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS readings (
	time TIMESTAMPTZ NOT NULL,
	voltage FLOAT8 NOT NULL,
	current FLOAT8 NOT NULL,
	power FLOAT8 NOT NULL,
	angle_h INT NOT NULL,
	angle_v INT NOT NULL,
	light INT NOT NULL,
	dust_alert BOOLEAN NOT NULL,
	dust_raw INT NOT NULL
);`

// TimescaleDB's create_hypertable errors if the table is already a
// hypertable, so if_not_exists soaks up restarts.
const createHypertableSQL = `SELECT create_hypertable('readings', 'time', if_not_exists => TRUE);`

// Storage holds the configuration for a TimescaleDB history backend.
type Storage struct {
	db *gorm.DB
}

// readingRow maps types.Reading onto the readings hypertable.
type readingRow struct {
	Time      time.Time `gorm:"column:time"`
	Voltage   float64   `gorm:"column:voltage"`
	Current   float64   `gorm:"column:current"`
	Power     float64   `gorm:"column:power"`
	AngleH    int       `gorm:"column:angle_h"`
	AngleV    int       `gorm:"column:angle_v"`
	Light     int       `gorm:"column:light"`
	DustAlert bool      `gorm:"column:dust_alert"`
	DustRaw   int       `gorm:"column:dust_raw"`
}

func (readingRow) TableName() string {
	return "readings"
}

// New sets up a new TimescaleDB history backend.
func New(ctx context.Context, connectionString string) (*Storage, error) {
	t := Storage{}

	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create a TimescaleDB connection:", err)
		return nil, err
	}
	t.db = db

	log.Info("creating readings table...")
	if err := t.db.WithContext(ctx).Exec(createTableSQL).Error; err != nil {
		log.Warn("warning: could not create readings table")
		return nil, err
	}

	// Hypertable conversion is best-effort: on plain PostgreSQL the
	// function does not exist and the table still works.
	if err := t.db.WithContext(ctx).Exec(createHypertableSQL).Error; err != nil {
		log.Warn("could not create hypertable (TimescaleDB extension missing?); continuing with a plain table:", err)
	}

	return &t, nil
}

// StartStorageEngine creates a goroutine loop to receive readings and send
// them off to TimescaleDB.
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	log.Info("starting TimescaleDB history backend...")
	readingChan := make(chan types.Reading, 10)
	go t.processReadings(ctx, wg, readingChan)
	return readingChan
}

func (t *Storage) processReadings(ctx context.Context, wg *sync.WaitGroup, rchan <-chan types.Reading) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case r := <-rchan:
			if err := t.StoreReading(r); err != nil {
				log.Error("could not store reading:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling readings processor.")
			return
		}
	}
}

// StoreReading stores a reading value in TimescaleDB.
func (t *Storage) StoreReading(r types.Reading) error {
	row := readingRow{
		Time:      r.Timestamp,
		Voltage:   r.VoltageV,
		Current:   r.CurrentMA,
		Power:     r.PowerW,
		AngleH:    r.AngleHorizontal,
		AngleV:    r.AngleVertical,
		Light:     r.LightPercent,
		DustAlert: r.DustAlert,
		DustRaw:   r.DustRaw,
	}
	return t.db.Create(&row).Error
}

// GetRecentReadings returns up to limit of the most recent readings in
// ascending timestamp order.
func (t *Storage) GetRecentReadings(ctx context.Context, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []readingRow
	if err := t.db.WithContext(ctx).
		Order("time DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]types.Reading, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		out = append(out, types.Reading{
			Timestamp:       row.Time,
			VoltageV:        row.Voltage,
			CurrentMA:       row.Current,
			PowerW:          row.Power,
			AngleHorizontal: row.AngleH,
			AngleVertical:   row.AngleV,
			LightPercent:    row.Light,
			DustAlert:       row.DustAlert,
			DustRaw:         row.DustRaw,
		})
	}
	return out, nil
}
