package database

import (
	"fmt"

	"github.com/coinladder/api/internal/auth"
	"github.com/coinladder/api/internal/database/migrations"
	"github.com/coinladder/api/internal/ledger"
	"github.com/coinladder/api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "coinladder.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate schemas
	err = db.AutoMigrate(
		&auth.User{},
		&ledger.Wallet{},
		&types.Trade{},
	)
	if err != nil {
		return nil, err
	}

	// Run index migrations
	if err := migrations.AddTradeIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
