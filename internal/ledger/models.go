package ledger

import (
	"time"

	"gorm.io/gorm"
)

// StartingBalance is the simulated cash every new wallet begins with.
const StartingBalance = 10000.00

// Wallet is a user's profile row: identity names plus the mutable
// simulated cash balance. The balance must never go negative.
type Wallet struct {
	gorm.Model    `json:"-"`
	UserID        string    `gorm:"uniqueIndex" json:"user_id"`
	DisplayName   string    `gorm:"uniqueIndex" json:"display_name"` // normalized lowercase
	PreferredName string    `json:"preferred_name"`                  // display form
	CashBalance   float64   `json:"cash_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
