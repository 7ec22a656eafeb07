// Package store owns the relational persistence for the table-state
// engine: the gorm models, the closed status enums, and the query
// helpers every workflow shares. All mutations happen inside a single
// transaction obtained through Store.Transaction; the database is the
// only concurrency-control mechanism between callers of the same game.
package store

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// ErrNotFound reports a missing game, player, seat or state row.
	// Never silently defaulted; the operation that hit it fails.
	ErrNotFound = errors.New("store: record not found")

	// ErrStaleVersion reports an optimistic-lock failure: the row
	// changed between the read and the write. The caller lost the race
	// and must retry from a fresh read.
	ErrStaleVersion = errors.New("store: row version changed")
)

// Store wraps the gorm handle and provides transaction scoping.
type Store struct {
	db     *gorm.DB
	logger *log.Logger
}

// Open connects to the database named by driver ("postgres" or
// "sqlite") and migrates the schema.
func Open(driver, dsn string, logger *log.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	return New(db, logger)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB, logger *log.Logger) (*Store, error) {
	err := db.AutoMigrate(
		&Game{},
		&GameSettings{},
		&TableState{},
		&SeatAssignment{},
		&PendingUpdate{},
		&SeatChangeOffer{},
		&HostReseatSeat{},
		&ClubMember{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db, logger: logger.WithPrefix("store")}, nil
}

// DB exposes the underlying handle for read-only paths.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn in a single database transaction.
func (s *Store) Transaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}
