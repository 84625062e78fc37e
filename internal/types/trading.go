package types

import (
	"time"

	"gorm.io/gorm"
)

// Trade sides
const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// Trade is an immutable record of a single simulated buy or sell.
// Rows are only ever inserted; the auto-increment primary key doubles
// as the replay ordering key for holdings accounting.
type Trade struct {
	gorm.Model     `json:"-"`
	UserID         string    `gorm:"index" json:"user_id"`
	CoinID         string    `json:"coin_id"`
	CoinSymbol     string    `json:"coin_symbol"`
	Type           string    `json:"type"` // BUY or SELL
	FiatAmount     float64   `json:"fiat_amount"`
	CryptoAmount   float64   `json:"crypto_amount"`
	ExecutionPrice float64   `json:"execution_price"`
	CreatedAt      time.Time `json:"created_at"`
}

// Holding is the derived position for one asset, recomputed from the
// full trade history on every request. It is never persisted.
type Holding struct {
	CoinID     string  `json:"coin_id"`
	CoinSymbol string  `json:"coin_symbol"`
	Quantity   float64 `json:"quantity"`
	CostBasis  float64 `json:"cost_basis"`
}

// TradeRequest is the request body shared by the buy and sell endpoints.
// Amount is the crypto quantity, Price the market price the caller saw.
type TradeRequest struct {
	CoinID     string  `json:"coin_id" binding:"required"`
	CoinSymbol string  `json:"coin_symbol" binding:"required"`
	Amount     float64 `json:"amount" binding:"required"`
	Price      float64 `json:"price" binding:"required"`
}
