package migrations

import (
	"gorm.io/gorm"
)

// AddTradeIndexes creates the indexes the ledger's query patterns rely on
func AddTradeIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for replay queries (all trades for a user, in sequence)
		`CREATE INDEX IF NOT EXISTS idx_trades_user_id_id
		 ON trades(user_id, id)`,

		// Index for per-asset lookups
		`CREATE INDEX IF NOT EXISTS idx_trades_coin_id
		 ON trades(coin_id)`,

		// Leaderboard ordering
		`CREATE INDEX IF NOT EXISTS idx_wallets_cash_balance
		 ON wallets(cash_balance)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
