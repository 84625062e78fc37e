package types

import "time"

// WalletResponse represents a user's cash balance and profile identity
type WalletResponse struct {
	UserID        string  `json:"user_id"`
	DisplayName   string  `json:"display_name"`
	PreferredName string  `json:"preferred_name"`
	CashBalance   float64 `json:"cash_balance"`
}

// LeaderboardEntry represents one ranked row of the leaderboard
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	CashBalance float64 `json:"cash_balance"`
}

// UserRankResponse represents a single user's position in the full ranking
type UserRankResponse struct {
	Rank        int     `json:"rank"`
	CashBalance float64 `json:"cash_balance"`
}

// ValuedHolding is a holding enriched with live market data
type ValuedHolding struct {
	Holding
	Name         string  `json:"name"`
	LogoURL      string  `json:"logo_url"`
	CurrentPrice float64 `json:"current_price"`
	CurrentValue float64 `json:"current_value"`
	NetProfit    float64 `json:"net_profit"`
}

// PortfolioValuation is the full portfolio with live totals
type PortfolioValuation struct {
	Assets      []ValuedHolding `json:"assets"`
	TotalValue  float64         `json:"total_value"`
	TotalProfit float64         `json:"total_profit"`
	Timestamp   time.Time       `json:"timestamp"`
}
