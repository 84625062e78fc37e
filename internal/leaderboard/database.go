package leaderboard

import (
	"github.com/coinladder/api/internal/ledger"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetTopWallets returns the richest wallets, ordered by cash balance
// descending. Ties keep insertion order via the primary key.
func (d *Database) GetTopWallets(limit int) ([]ledger.Wallet, error) {
	var wallets []ledger.Wallet
	if err := d.db.Order("cash_balance DESC, id ASC").Limit(limit).Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

// CountWalletsAbove returns how many wallets out-rank the given balance.
func (d *Database) CountWalletsAbove(balance float64) (int64, error) {
	var count int64
	if err := d.db.Model(&ledger.Wallet{}).Where("cash_balance > ?", balance).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
