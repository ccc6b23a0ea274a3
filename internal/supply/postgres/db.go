package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/otp-service/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

var (
	dbInstance *DB
	once       sync.Once
)

// NewDB creates a new database connection pool
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var err error
	once.Do(func() {
		connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

		var db *sqlx.DB
		db, err = sqlx.Connect("postgres", connStr)
		if err != nil {
			return
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		dbInstance = &DB{
			DB:  db,
			sem: semaphore.NewWeighted(10),
		}
	})

	return dbInstance, err
}

// Migrate creates the supply tables when they do not exist yet. The schema is
// small enough that an in-process migration beats carrying a migration tool.
func (db *DB) Migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS supply_stock (
			item_code    TEXT NOT NULL,
			warehouse    TEXT NOT NULL,
			actual_qty   DOUBLE PRECISION NOT NULL DEFAULT 0,
			reserved_qty DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (item_code, warehouse)
		)`,
		`CREATE TABLE IF NOT EXISTS supply_purchase_orders (
			po_id         TEXT NOT NULL,
			item_code     TEXT NOT NULL,
			qty           DOUBLE PRECISION NOT NULL,
			expected_date DATE NOT NULL,
			warehouse     TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (po_id, item_code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_supply_po_item_date
			ON supply_purchase_orders (item_code, expected_date)`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not run migration: %w", err)
		}
	}
	return nil
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx.Tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
