package ledger

import (
	"errors"
	"strings"

	"github.com/coinladder/api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetWallet(userID string) (*Wallet, error) {
	var wallet Wallet
	if err := d.db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (d *Database) CreateWallet(wallet *Wallet) error {
	err := d.db.Create(wallet).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDisplayNameTaken
	}
	return err
}

func (d *Database) GetWalletByDisplayName(displayName string) (*Wallet, error) {
	var wallet Wallet
	if err := d.db.Where("display_name = ?", displayName).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// ExecuteTrade applies the cash change and appends the trade row in a
// single transaction. The balance update is conditional, so the
// sufficient-funds check and the write cannot race: a concurrent trade
// that would overdraw the wallet matches zero rows and nothing persists.
// Returns false when the conditional update matched no wallet row.
func (d *Database) ExecuteTrade(trade *types.Trade, cashChange float64) (bool, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return false, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	result := tx.Model(&Wallet{}).
		Where("user_id = ? AND cash_balance + ? >= 0", trade.UserID, cashChange).
		Update("cash_balance", gorm.Expr("cash_balance + ?", cashChange))
	if result.Error != nil {
		tx.Rollback()
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	if err := tx.Create(trade).Error; err != nil {
		tx.Rollback()
		return false, err
	}

	return true, tx.Commit().Error
}

// GetTradesForReplay returns every trade for the user ordered by the
// append sequence. Weighted-average accounting depends on this order;
// storage return order alone is never trusted.
func (d *Database) GetTradesForReplay(userID string) ([]types.Trade, error) {
	var trades []types.Trade
	if err := d.db.Where("user_id = ?", userID).Order("id ASC").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// GetTradeHistory returns the user's trades newest first, for display.
func (d *Database) GetTradeHistory(userID string) ([]types.Trade, error) {
	var trades []types.Trade
	if err := d.db.Where("user_id = ?", userID).Order("id DESC").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// isUniqueViolation detects sqlite unique constraint failures, which
// gorm's sqlite driver does not translate to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
